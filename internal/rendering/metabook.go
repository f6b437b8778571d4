package rendering

import (
	"encoding/json"

	"github.com/pagefold/bindery/internal/collection"
)

// Config holds the render service connection settings.
type Config struct {
	// ServeURL is the render service endpoint. A "proxy|url" value routes
	// requests through the given proxy.
	ServeURL string
	// WriterToURL and CommandToURL override ServeURL per output writer or
	// per command.
	WriterToURL  map[string]string
	CommandToURL map[string]string
	// Credentials, when set, is sent as login_credentials.
	Credentials string

	// BaseURL is the wiki's canonical base URL as seen by the render
	// service. ScriptExtension defaults to ".php".
	BaseURL         string
	ScriptExtension string
	Language        string

	// License info embedded in job documents. LicenseURL wins over the
	// name when both are set.
	LicenseName string
	LicenseURL  string

	// Backend content source, by priority: RestBaseURL, then ParsoidURL.
	RestBaseURL   string
	ParsoidURL    string
	ParsoidPrefix string
	ParsoidDomain string

	// ContentTypeToFilename supplies a download filename when the backend
	// sends no content disposition.
	ContentTypeToFilename map[string]string
}

func (c Config) scriptExtension() string {
	if c.ScriptExtension == "" {
		return ".php"
	}
	return c.ScriptExtension
}

func (c Config) language() string {
	if c.Language == "" {
		return "en"
	}
	return c.Language
}

// BuildMetabook serializes a collection into the render service's job
// document: license info, flattened settings, chapter-grouped items and the
// wiki connection descriptors.
func BuildMetabook(coll *collection.Collection, cfg Config) ([]byte, error) {
	doc := map[string]interface{}{
		"type":     "collection",
		"licenses": []interface{}{licenseInfo(cfg)},
	}
	if coll.Title != "" {
		doc["title"] = coll.Title
	}
	if coll.Subtitle != "" {
		doc["subtitle"] = coll.Subtitle
	}
	if len(coll.Settings) > 0 {
		for key, value := range coll.Settings {
			doc[key] = value
		}
		// compatibility with old mw-serve
		doc["settings"] = coll.Settings
	}
	doc["items"] = groupItems(coll.Items)
	doc["wikis"] = []interface{}{wikiConf(cfg)}
	return json.Marshal(doc)
}

func licenseInfo(cfg Config) map[string]interface{} {
	license := map[string]interface{}{"type": "license"}
	if cfg.LicenseURL != "" {
		license["mw_license_url"] = cfg.LicenseURL
	}
	if cfg.LicenseName != "" {
		license["name"] = cfg.LicenseName
	}
	return license
}

// groupItems nests articles under their preceding chapter. Articles before
// the first chapter stay top-level.
func groupItems(items []collection.Item) []interface{} {
	grouped := []interface{}{}
	var currentChapter map[string]interface{}
	for _, item := range items {
		switch it := item.(type) {
		case *collection.Article:
			entry := articleEntry(it)
			if currentChapter == nil {
				grouped = append(grouped, entry)
			} else {
				currentChapter["items"] = append(currentChapter["items"].([]interface{}), entry)
			}
		case *collection.Chapter:
			if currentChapter != nil {
				grouped = append(grouped, currentChapter)
			}
			currentChapter = map[string]interface{}{
				"type":  "chapter",
				"title": it.Title,
				"items": []interface{}{},
			}
		}
	}
	if currentChapter != nil {
		grouped = append(grouped, currentChapter)
	}
	return grouped
}

func articleEntry(article *collection.Article) map[string]interface{} {
	current := 0
	if article.CurrentVersion {
		current = 1
	}
	return map[string]interface{}{
		"type":           "article",
		"title":          article.Title,
		"content_type":   article.ContentType,
		"revision":       article.Revision,
		"latest":         article.Latest,
		"timestamp":      article.Timestamp,
		"url":            article.URL,
		"currentVersion": current,
	}
}

func wikiConf(cfg Config) map[string]interface{} {
	conf := map[string]interface{}{
		"type":             "wikiconf",
		"baseurl":          cfg.BaseURL,
		"script_extension": cfg.scriptExtension(),
		"format":           "nuwiki",
	}
	// The content source is resolved by priority: a dedicated REST
	// backend, then a generic parsoid, else the plain action API.
	switch {
	case cfg.RestBaseURL != "":
		conf["restbase1"] = cfg.RestBaseURL
	case cfg.ParsoidURL != "":
		conf["parsoid"] = cfg.ParsoidURL
		conf["prefix"] = cfg.ParsoidPrefix
		conf["domain"] = cfg.ParsoidDomain
	}
	return conf
}
