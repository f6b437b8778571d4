// Package book assembles a collection's fetched pages into one HTML book:
// chapter and article headings, rewritten per-article bodies, a nested table
// of contents and the trailing contributors/images/license sections.
package book

import (
	"fmt"
	"html"
	"strings"

	"github.com/pagefold/bindery/internal/collection"
)

// Outline entry types.
const (
	EntryChapter      = "chapter"
	EntryArticle      = "article"
	EntrySection      = "section"
	EntryContributors = "contributors"
	EntryImages       = "images"
	EntryLicense      = "license"
)

// OutlineEntry is one table-of-contents row. Text is HTML (display titles
// may carry markup). The flat outline produced during assembly is nested via
// Children before templating.
type OutlineEntry struct {
	Text     string          `json:"text"`
	Type     string          `json:"type"`
	Level    int             `json:"level"`
	Anchor   string          `json:"anchor"`
	Number   string          `json:"number"`
	Children []*OutlineEntry `json:"children,omitempty"`
}

// Book is an assembled collection ready for output.
type Book struct {
	// HTML is the full book body: cover and TOC, per-item content and
	// trailing sections. No document wrapper; see WrapDocument.
	HTML         string
	Outline      []*OutlineEntry
	Contributors []string
	Images       []collection.ImageRef
	License      *collection.LicenseInfo
}

// nestOutline groups each flat entry under the nearest preceding entry of
// strictly lower level.
func nestOutline(flat []*OutlineEntry) []*OutlineEntry {
	var roots []*OutlineEntry
	var open []*OutlineEntry
	for _, entry := range flat {
		for len(open) > 0 && open[len(open)-1].Level >= entry.Level {
			open = open[:len(open)-1]
		}
		if len(open) > 0 {
			top := open[len(open)-1]
			top.Children = append(top.Children, entry)
		} else {
			roots = append(roots, entry)
		}
		open = append(open, entry)
	}
	return roots
}

// renderOutlineList renders nested outline entries as <ul> markup for the
// TOC template.
func renderOutlineList(entries []*OutlineEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<ul class="mw-book-toc-list">`)
	for _, entry := range entries {
		fmt.Fprintf(&b, `<li class="mw-book-toc-%s"><a href="#%s"><span class="mw-book-toc-number">%s</span> %s</a>`,
			entry.Type, html.EscapeString(entry.Anchor), html.EscapeString(entry.Number), entry.Text)
		b.WriteString(renderOutlineList(entry.Children))
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// WrapDocument wraps a book body in a standalone HTML document.
func WrapDocument(title, body string) string {
	var b strings.Builder
	b.Grow(len(body) + 256)
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}
