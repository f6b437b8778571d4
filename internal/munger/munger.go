// Package munger rewrites per-article HTML fragments so they can be embedded
// into a single book document: heading ids become document-unique anchors,
// heading levels shift to fit under the book's structural headings, and every
// heading gets a hierarchical section number.
package munger

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/pagefold/bindery/internal/collection"
	"github.com/pagefold/bindery/internal/numbering"
)

// Munger tracks anchor uniqueness across all articles of one book. Use one
// Munger per book render.
type Munger struct {
	// topHeadingLevel is where an article's top heading lands in the book:
	// 3 when the book has chapters, 2 otherwise.
	topHeadingLevel int
	usedIDs         map[string]bool
}

// New returns a munger emitting article headings at topHeadingLevel.
func New(topHeadingLevel int) *Munger {
	return &Munger{topHeadingLevel: topHeadingLevel, usedIDs: map[string]bool{}}
}

// MungeArticle rewrites one article's body fragment. articlePath namespaces
// the rewritten anchors (the article's DB key). sections is the heading list
// known from the metadata fetch; it is reconciled index-by-index with the
// headings found during traversal, since both come from the same document.
// Headings beyond the known list get descriptors appended from their text.
//
// The input is trusted machine-generated HTML: unknown or malformed byte
// sequences are passed through verbatim and never cause an error.
func (m *Munger) MungeArticle(src, articlePath string, sections []collection.Section, counter *numbering.HeadingCounter) (string, []collection.Section) {
	var out strings.Builder
	out.Grow(len(src) + 256)

	z := html.NewTokenizer(strings.NewReader(src))
	index := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				// strings.Reader cannot fail; pass through whatever
				// the tokenizer buffered and stop.
				out.Write(z.Raw())
			}
			break
		}
		if tt == html.StartTagToken {
			if depth, ok := headingDepth(z.Raw()); ok {
				token := z.Token()
				inner, text := m.captureHeading(z, token.Data)
				sections = m.emitHeading(&out, token, inner, text, depth, articlePath, sections, index, counter)
				index++
				continue
			}
		}
		out.Write(z.Raw())
	}
	return out.String(), sections
}

// captureHeading consumes tokens up to the heading's end tag, returning the
// raw inner HTML and its plain text.
func (m *Munger) captureHeading(z *html.Tokenizer, tag string) (inner, text string) {
	var rawBuf, textBuf strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return rawBuf.String(), textBuf.String()
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == tag {
				return rawBuf.String(), textBuf.String()
			}
			rawBuf.Write(z.Raw())
		case html.TextToken:
			rawBuf.Write(z.Raw())
			textBuf.Write(z.Text())
		default:
			rawBuf.Write(z.Raw())
		}
	}
}

func (m *Munger) emitHeading(out *strings.Builder, token html.Token, inner, text string, depth int, articlePath string, sections []collection.Section, index int, counter *numbering.HeadingCounter) []collection.Section {
	level := depth + m.topHeadingLevel
	if level > 6 {
		level = 6
	}
	if level < 1 {
		level = 1
	}

	originalID := ""
	for _, attr := range token.Attr {
		if attr.Key == "id" {
			originalID = attr.Val
		}
	}
	if originalID == "" {
		originalID = text
	}
	id := m.uniqueID(articlePath, originalID)
	number := counter.IncrementAndGet(depth)

	fmt.Fprintf(out, `<h%d id="%s" data-mw-sectionnumber="%s"`, level, html.EscapeString(id), html.EscapeString(number))
	for _, attr := range token.Attr {
		if attr.Key == "id" || attr.Key == "data-mw-sectionnumber" {
			continue
		}
		fmt.Fprintf(out, ` %s="%s"`, attr.Key, html.EscapeString(attr.Val))
	}
	fmt.Fprintf(out, ">%s</h%d>", inner, level)

	if index < len(sections) {
		sections[index].ID = id
		sections[index].Level = depth
	} else {
		sections = append(sections, collection.Section{
			Title: strings.TrimSpace(text),
			ID:    id,
			Level: depth,
		})
	}
	return sections
}

// uniqueID builds a document-unique anchor from the article path and the
// heading's original anchor, suffixing on collision.
func (m *Munger) uniqueID(articlePath, originalID string) string {
	base := EscapeID(strings.TrimPrefix(articlePath, "./"))
	if originalID != "" {
		base += "-" + EscapeID(originalID)
	}
	id := base
	for n := 2; m.usedIDs[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	m.usedIDs[id] = true
	return id
}

// headingDepth reports the 0-based intrinsic depth of a raw start tag if it
// is a heading. Article top headings arrive as h2, so h2 maps to depth 0 and
// h1 (which should not occur) clamps to 0 as well.
func headingDepth(raw []byte) (int, bool) {
	if len(raw) < 3 || (raw[1] != 'h' && raw[1] != 'H') {
		return 0, false
	}
	c := raw[2]
	if c < '1' || c > '6' {
		return 0, false
	}
	if len(raw) > 3 && raw[3] != '>' && raw[3] != ' ' && raw[3] != '\t' && raw[3] != '\n' && raw[3] != '/' {
		return 0, false
	}
	depth := int(c-'0') - 2
	if depth < 0 {
		depth = 0
	}
	return depth, true
}

// EscapeID converts text to a form safe for use in an id attribute, the same
// way wiki section anchors are formed: spaces become underscores and
// problematic characters are dropped.
func EscapeID(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ReplaceAll(strings.TrimSpace(text), " ", "_") {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '-', r == '.', r == ':':
			b.WriteRune(r)
		default:
			// Non-ASCII stays; only markup-hostile ASCII is dropped.
			if r > 127 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
