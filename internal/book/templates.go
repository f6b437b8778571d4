package book

import (
	"embed"
	"fmt"

	"github.com/aymerick/raymond"
)

//go:embed templates/*.hbs
var templateFS embed.FS

// TemplateSet holds the parsed handlebars templates for the non-article
// parts of a book.
type TemplateSet struct {
	toc          *raymond.Template
	contributors *raymond.Template
	images       *raymond.Template
	license      *raymond.Template
}

// LoadTemplates parses the embedded templates.
func LoadTemplates() (*TemplateSet, error) {
	ts := &TemplateSet{}
	for name, dst := range map[string]**raymond.Template{
		"toc":          &ts.toc,
		"contributors": &ts.contributors,
		"images":       &ts.images,
		"license":      &ts.license,
	} {
		content, err := templateFS.ReadFile("templates/" + name + ".hbs")
		if err != nil {
			return nil, fmt.Errorf("book: reading template %s: %w", name, err)
		}
		tmpl, err := raymond.Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("book: parsing template %s: %w", name, err)
		}
		*dst = tmpl
	}
	return ts, nil
}

func (ts *TemplateSet) exec(tmpl *raymond.Template, data map[string]interface{}) (string, error) {
	return tmpl.Exec(fixTemplateData(data))
}

// fixTemplateData adds a "key?" boolean sibling for every key so templates
// can test presence without evaluating truthiness themselves. Handlebars
// treats the number 0 as falsy; here only false, empty strings and empty
// containers are.
func fixTemplateData(data map[string]interface{}) map[string]interface{} {
	fixed := make(map[string]interface{}, len(data)*2)
	for key, value := range data {
		fixed[key+"?"] = truthy(value)
		switch v := value.(type) {
		case map[string]interface{}:
			fixed[key] = fixTemplateData(v)
		case []interface{}:
			items := make([]interface{}, len(v))
			for i, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					items[i] = fixTemplateData(m)
				} else {
					items[i] = item
				}
			}
			fixed[key] = items
		default:
			fixed[key] = value
		}
	}
	return fixed
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		// Numbers, including 0 and "0" handled above, count as present.
		return true
	}
}
