package book

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"

	"github.com/pagefold/bindery/internal/collection"
	"github.com/pagefold/bindery/internal/munger"
	"github.com/pagefold/bindery/internal/numbering"
)

// Renderer assembles books. One Renderer is safe for concurrent use; all
// per-render state lives on the stack.
type Renderer struct {
	templates *TemplateSet
	markdown  goldmark.Markdown
}

// NewRenderer loads the embedded templates and sets up the Markdown
// converter used for cover prefaces.
func NewRenderer() (*Renderer, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithRendererOptions(
			ghtml.WithUnsafe(),
		),
	)
	return &Renderer{templates: templates, markdown: md}, nil
}

// bodyContents strips everything up to and including the <body> open tag and
// the trailing </body></html>. The head of upstream page HTML has no
// user-controlled parts, so a regex is good enough here.
var bodyContents = regexp.MustCompile(`(?is)(^.*?<body\b[^>]*>)|(</body>\s*</html>\s*$)`)

func getBodyContents(pageHTML string) string {
	return bodyContents.ReplaceAllString(pageHTML, "")
}

// Render assembles the collection into a Book. pages maps article DB keys to
// their full page HTML; every article in the collection must be present.
// meta's section lists are updated in place with the final anchors and
// levels.
func (r *Renderer) Render(coll *collection.Collection, pages map[string]string, meta *collection.Metadata) (*Book, error) {
	hasChapters := coll.HasChapters()
	articleCount := coll.ArticleCount()
	topHeadingLevel := 2
	if hasChapters {
		topHeadingLevel = 3
	}

	// First pass renders the article bodies; TOC anchors are only final
	// once id conflicts have been resolved here.
	var body strings.Builder
	counter := numbering.NewHeadingCounter()
	m := munger.New(topHeadingLevel)
	for _, item := range coll.Items {
		switch it := item.(type) {
		case *collection.Chapter:
			fmt.Fprintf(&body, "<h1 id=\"mw-book-chapter-%s\" class=\"mw-book-chapter\" data-mw-sectionnumber=\"%s\">%s</h1>\n",
				munger.EscapeID(it.Title), counter.IncrementAndGet(-2), html.EscapeString(it.Title))
		case *collection.Article:
			dbkey := it.DBKey()
			page, ok := pages[dbkey]
			if !ok {
				return nil, fmt.Errorf("book: no fetched page for %s", dbkey)
			}
			// A single-article book skips the redundant per-article
			// heading.
			if articleCount > 1 {
				fmt.Fprintf(&body, "<h2 id=\"mw-book-article-%s\" class=\"mw-book-article\" data-mw-sectionnumber=\"%s\">%s</h2>\n",
					dbkey, counter.IncrementAndGet(-1), r.displayTitle(meta, it))
			}
			munged, sections := m.MungeArticle(getBodyContents(page), "./"+dbkey, meta.Sections[dbkey], counter)
			meta.Sections[dbkey] = sections
			body.WriteString("<article>")
			body.WriteString(munged)
			body.WriteString("</article>")
		default:
			return nil, fmt.Errorf("book: unknown collection item type %T", item)
		}
	}

	outline, err := r.buildOutline(coll, meta)
	if err != nil {
		return nil, err
	}
	metadataLevel := trailingLevel(hasChapters, articleCount)

	cover, err := r.renderCoverAndTOC(coll, outline)
	if err != nil {
		return nil, err
	}

	trailing, err := r.renderTrailing(meta, counter, metadataLevel)
	if err != nil {
		return nil, err
	}

	book := &Book{
		HTML:         cover + body.String() + trailing,
		Outline:      nestOutline(outline),
		Contributors: contributorNames(meta),
		Images:       meta.Images,
		License:      meta.License,
	}
	return book, nil
}

func (r *Renderer) displayTitle(meta *collection.Metadata, article *collection.Article) string {
	if title, ok := meta.DisplayTitle[article.DBKey()]; ok && title != "" {
		return title
	}
	return html.EscapeString(article.Title)
}

// buildOutline walks the items a second time with a fresh counter, producing
// the flat outline with the final (post-munge) section anchors.
func (r *Renderer) buildOutline(coll *collection.Collection, meta *collection.Metadata) ([]*OutlineEntry, error) {
	hasChapters := coll.HasChapters()
	articleCount := coll.ArticleCount()
	counter := numbering.NewHeadingCounter()
	var outline []*OutlineEntry
	for _, item := range coll.Items {
		switch it := item.(type) {
		case *collection.Chapter:
			outline = append(outline, &OutlineEntry{
				Text:   html.EscapeString(it.Title),
				Type:   EntryChapter,
				Level:  -2,
				Anchor: "mw-book-chapter-" + munger.EscapeID(it.Title),
				Number: counter.IncrementAndGet(-2),
			})
		case *collection.Article:
			dbkey := it.DBKey()
			if articleCount > 1 {
				outline = append(outline, &OutlineEntry{
					Text:   r.displayTitle(meta, it),
					Type:   EntryArticle,
					Level:  -1,
					Anchor: "mw-book-article-" + dbkey,
					Number: counter.IncrementAndGet(-1),
				})
			}
			for _, section := range meta.Sections[dbkey] {
				outline = append(outline, &OutlineEntry{
					Text:   section.Title,
					Type:   EntrySection,
					Level:  section.Level,
					Anchor: section.ID,
					Number: counter.IncrementAndGet(section.Level),
				})
			}
		default:
			return nil, fmt.Errorf("book: unknown collection item type %T", item)
		}
	}

	metadataLevel := trailingLevel(hasChapters, articleCount)
	outline = append(outline, &OutlineEntry{
		Text:   "Contributors",
		Type:   EntryContributors,
		Level:  metadataLevel,
		Anchor: "mw-book-contributors",
		Number: topLevelNumber(counter, metadataLevel),
	})
	if len(meta.Images) > 0 {
		outline = append(outline, &OutlineEntry{
			Text:   "Images",
			Type:   EntryImages,
			Level:  metadataLevel,
			Anchor: "mw-book-images",
			Number: topLevelNumber(counter, metadataLevel),
		})
	}
	if meta.License != nil {
		outline = append(outline, &OutlineEntry{
			Text:   "License",
			Type:   EntryLicense,
			Level:  metadataLevel,
			Anchor: "mw-book-license",
			Number: topLevelNumber(counter, metadataLevel),
		})
	}
	return outline, nil
}

// trailingLevel is where the trailing sections attach: the shallowest
// structural level the book actually uses.
func trailingLevel(hasChapters bool, articleCount int) int {
	switch {
	case hasChapters:
		return -2
	case articleCount > 1:
		return -1
	default:
		return 0
	}
}

// topLevelNumber numbers a trailing section. An empty counter means the book
// had no items at all; the trailing sections then start their own sequence.
func topLevelNumber(counter *numbering.HeadingCounter, metadataLevel int) string {
	number, err := counter.IncrementAndGetTopLevel()
	if errors.Is(err, numbering.ErrEmptyCounter) {
		return counter.IncrementAndGet(metadataLevel)
	}
	return number
}

func (r *Renderer) renderCoverAndTOC(coll *collection.Collection, outline []*OutlineEntry) (string, error) {
	preface := ""
	if coll.Preface != "" {
		var buf bytes.Buffer
		if err := r.markdown.Convert([]byte(coll.Preface), &buf); err != nil {
			return "", fmt.Errorf("book: converting preface: %w", err)
		}
		preface = buf.String()
	}
	return r.templates.exec(r.templates.toc, map[string]interface{}{
		"title":    coll.Title,
		"subtitle": coll.Subtitle,
		"preface":  preface,
		"toctitle": "Contents",
		"tocitems": renderOutlineList(nestOutline(outline)),
	})
}

func (r *Renderer) renderTrailing(meta *collection.Metadata, counter *numbering.HeadingCounter, metadataLevel int) (string, error) {
	var out strings.Builder

	contributors, err := r.templates.exec(r.templates.contributors, map[string]interface{}{
		"heading": "Contributors",
		"number":  topLevelNumber(counter, metadataLevel),
		"names":   contributorNames(meta),
	})
	if err != nil {
		return "", fmt.Errorf("book: rendering contributors: %w", err)
	}
	out.WriteString(contributors)

	if len(meta.Images) > 0 {
		images := make([]interface{}, 0, len(meta.Images))
		for _, img := range meta.Images {
			images = append(images, map[string]interface{}{
				"title":  img.Title,
				"url":    img.URL,
				"credit": img.Credit,
			})
		}
		rendered, err := r.templates.exec(r.templates.images, map[string]interface{}{
			"heading": "Images",
			"number":  topLevelNumber(counter, metadataLevel),
			"images":  images,
		})
		if err != nil {
			return "", fmt.Errorf("book: rendering images: %w", err)
		}
		out.WriteString(rendered)
	}

	if meta.License != nil {
		rendered, err := r.templates.exec(r.templates.license, map[string]interface{}{
			"heading": "License",
			"number":  topLevelNumber(counter, metadataLevel),
			"name":    meta.License.Name,
			"url":     meta.License.URL,
		})
		if err != nil {
			return "", fmt.Errorf("book: rendering license: %w", err)
		}
		out.WriteString(rendered)
	}
	return out.String(), nil
}

func contributorNames(meta *collection.Metadata) []string {
	names := make([]string, 0, len(meta.Contributors))
	for name := range meta.Contributors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
