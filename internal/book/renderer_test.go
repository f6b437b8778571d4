package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagefold/bindery/internal/collection"
)

func page(body string) string {
	return "<!DOCTYPE html><html><head><title>t</title></head><body>" + body + "</body></html>"
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestRenderBookWithChapters(t *testing.T) {
	coll := collection.New()
	coll.Title = "My Book"
	coll.Subtitle = "An example"
	coll.Items = []collection.Item{
		&collection.Chapter{Title: "Basics"},
		&collection.Article{Title: "Alpha"},
		&collection.Article{Title: "Beta"},
	}
	meta := collection.NewMetadata()
	meta.DisplayTitle["Alpha"] = "Alpha"
	meta.DisplayTitle["Beta"] = "Beta"
	meta.Sections["Alpha"] = []collection.Section{{Title: "History", ID: "History", Level: 0}}
	meta.Contributors["Alice"] = 1
	pages := map[string]string{
		"Alpha": page(`<h2 id="History">History</h2><p>body</p>`),
		"Beta":  page(`<p>no headings</p>`),
	}

	book, err := newTestRenderer(t).Render(coll, pages, meta)
	require.NoError(t, err)

	// Chapter heading is an h1 numbered at the top level.
	assert.Contains(t, book.HTML, `<h1 id="mw-book-chapter-Basics" class="mw-book-chapter" data-mw-sectionnumber="1">Basics</h1>`)
	// Article headings are h2 and numbered beneath the chapter.
	assert.Contains(t, book.HTML, `<h2 id="mw-book-article-Alpha" class="mw-book-article" data-mw-sectionnumber="1.1">Alpha</h2>`)
	assert.Contains(t, book.HTML, `<h2 id="mw-book-article-Beta" class="mw-book-article" data-mw-sectionnumber="1.2">Beta</h2>`)
	// With chapters, article content headings start at h3.
	assert.Contains(t, book.HTML, `<h3 id="Alpha-History" data-mw-sectionnumber="1.1.1">History</h3>`)
	// Bodies are wrapped and stripped of their document shell.
	assert.Contains(t, book.HTML, `<article>`)
	assert.NotContains(t, book.HTML, "<!DOCTYPE")
	assert.NotContains(t, book.HTML, "<title>t</title>")
	// Contributors trail the book at the chapter level.
	assert.Contains(t, book.HTML, `<h1 id="mw-book-contributors" data-mw-sectionnumber="2">Contributors</h1>`)
	assert.Contains(t, book.HTML, "<li>Alice</li>")

	// Outline nests sections under articles under the chapter.
	require.Len(t, book.Outline, 2)
	chapter := book.Outline[0]
	assert.Equal(t, EntryChapter, chapter.Type)
	require.Len(t, chapter.Children, 2)
	alpha := chapter.Children[0]
	assert.Equal(t, EntryArticle, alpha.Type)
	require.Len(t, alpha.Children, 1)
	assert.Equal(t, "History", alpha.Children[0].Text)
	assert.Equal(t, "Alpha-History", alpha.Children[0].Anchor)
	assert.Equal(t, "1.1.1", alpha.Children[0].Number)
	assert.Equal(t, EntryContributors, book.Outline[1].Type)
	assert.Equal(t, "2", book.Outline[1].Number)
}

func TestRenderSingleArticleSkipsArticleHeading(t *testing.T) {
	coll := collection.New()
	coll.Title = "Solo"
	coll.Items = []collection.Item{&collection.Article{Title: "Only"}}
	meta := collection.NewMetadata()
	meta.DisplayTitle["Only"] = "Only"
	pages := map[string]string{"Only": page(`<h2 id="Intro">Intro</h2>`)}

	book, err := newTestRenderer(t).Render(coll, pages, meta)
	require.NoError(t, err)

	assert.NotContains(t, book.HTML, "mw-book-article-")
	// Without chapters the article's top heading stays h2.
	assert.Contains(t, book.HTML, `<h2 id="Only-Intro" data-mw-sectionnumber="1">Intro</h2>`)
	// Trailing sections continue numbering at the section level.
	assert.Contains(t, book.HTML, `<h1 id="mw-book-contributors" data-mw-sectionnumber="2">Contributors</h1>`)

	require.Len(t, book.Outline, 2)
	assert.Equal(t, EntrySection, book.Outline[0].Type)
	assert.Equal(t, EntryContributors, book.Outline[1].Type)
	assert.Equal(t, 0, book.Outline[1].Level)
}

func TestRenderEmptyCollectionStillHasContributors(t *testing.T) {
	coll := collection.New()
	coll.Title = "Empty"
	meta := collection.NewMetadata()

	book, err := newTestRenderer(t).Render(coll, map[string]string{}, meta)
	require.NoError(t, err)

	assert.Contains(t, book.HTML, `<h1 id="mw-book-contributors" data-mw-sectionnumber="1">Contributors</h1>`)
	require.Len(t, book.Outline, 1)
	assert.Equal(t, "1", book.Outline[0].Number)
}

func TestRenderTrailingImagesAndLicense(t *testing.T) {
	coll := collection.New()
	coll.Title = "Media"
	coll.Items = []collection.Item{
		&collection.Article{Title: "Alpha"},
		&collection.Article{Title: "Beta"},
	}
	meta := collection.NewMetadata()
	meta.DisplayTitle["Alpha"] = "Alpha"
	meta.DisplayTitle["Beta"] = "Beta"
	meta.Images = []collection.ImageRef{{Title: "File:Pic.png", URL: "https://wiki.example/img/Pic.png", Credit: "Alice"}}
	meta.License = &collection.LicenseInfo{Name: "CC BY-SA 4.0", URL: "https://example.org/license"}
	pages := map[string]string{"Alpha": page("<p>a</p>"), "Beta": page("<p>b</p>")}

	book, err := newTestRenderer(t).Render(coll, pages, meta)
	require.NoError(t, err)

	// Two articles, then contributors=3, images=4, license=5.
	assert.Contains(t, book.HTML, `<h1 id="mw-book-contributors" data-mw-sectionnumber="3">Contributors</h1>`)
	assert.Contains(t, book.HTML, `<h1 id="mw-book-images" data-mw-sectionnumber="4">Images</h1>`)
	assert.Contains(t, book.HTML, `<a href="https://wiki.example/img/Pic.png">File:Pic.png</a>`)
	assert.Contains(t, book.HTML, `<span class="mw-book-image-credit">Alice</span>`)
	assert.Contains(t, book.HTML, `<h1 id="mw-book-license" data-mw-sectionnumber="5">License</h1>`)
	assert.Contains(t, book.HTML, `<a href="https://example.org/license">CC BY-SA 4.0</a>`)

	types := make([]string, 0, len(book.Outline))
	for _, entry := range book.Outline {
		types = append(types, entry.Type)
	}
	assert.Equal(t, []string{EntryArticle, EntryArticle, EntryContributors, EntryImages, EntryLicense}, types)
}

func TestRenderCoverAndTOC(t *testing.T) {
	coll := collection.New()
	coll.Title = "My Book"
	coll.Subtitle = "Second Edition"
	coll.Preface = "A *short* preface."
	coll.Items = []collection.Item{
		&collection.Article{Title: "Alpha"},
		&collection.Article{Title: "Beta"},
	}
	meta := collection.NewMetadata()
	meta.DisplayTitle["Alpha"] = "Alpha"
	meta.DisplayTitle["Beta"] = "Beta"
	pages := map[string]string{"Alpha": page("<p>a</p>"), "Beta": page("<p>b</p>")}

	book, err := newTestRenderer(t).Render(coll, pages, meta)
	require.NoError(t, err)

	assert.Contains(t, book.HTML, `<h1 class="mw-book-title">My Book</h1>`)
	assert.Contains(t, book.HTML, `<h2 class="mw-book-subtitle">Second Edition</h2>`)
	// The preface is Markdown, converted for the cover.
	assert.Contains(t, book.HTML, "<em>short</em> preface")
	assert.Contains(t, book.HTML, `<a href="#mw-book-article-Alpha">`)
}

func TestRenderOmitsEmptyCoverParts(t *testing.T) {
	coll := collection.New()
	coll.Title = "Bare"
	meta := collection.NewMetadata()

	book, err := newTestRenderer(t).Render(coll, map[string]string{}, meta)
	require.NoError(t, err)

	assert.NotContains(t, book.HTML, "mw-book-subtitle")
	assert.NotContains(t, book.HTML, "mw-book-preface")
}

func TestRenderMissingPage(t *testing.T) {
	coll := collection.New()
	coll.Items = []collection.Item{&collection.Article{Title: "Gone"}}
	meta := collection.NewMetadata()

	_, err := newTestRenderer(t).Render(coll, map[string]string{}, meta)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetched page")
}

func TestRenderUpdatesSectionMetadata(t *testing.T) {
	coll := collection.New()
	coll.Items = []collection.Item{&collection.Article{Title: "Alpha"}}
	meta := collection.NewMetadata()
	meta.DisplayTitle["Alpha"] = "Alpha"
	meta.Sections["Alpha"] = []collection.Section{{Title: "History", ID: "History", Level: 0}}
	pages := map[string]string{"Alpha": page(`<h2 id="History">History</h2>`)}

	_, err := newTestRenderer(t).Render(coll, pages, meta)
	require.NoError(t, err)

	require.Len(t, meta.Sections["Alpha"], 1)
	assert.Equal(t, "Alpha-History", meta.Sections["Alpha"][0].ID)
}

func TestNestOutline(t *testing.T) {
	flat := []*OutlineEntry{
		{Text: "C1", Level: -2},
		{Text: "A1", Level: -1},
		{Text: "S1", Level: 0},
		{Text: "S2", Level: 1},
		{Text: "A2", Level: -1},
		{Text: "C2", Level: -2},
	}
	nested := nestOutline(flat)

	require.Len(t, nested, 2)
	c1 := nested[0]
	require.Len(t, c1.Children, 2)
	a1 := c1.Children[0]
	require.Len(t, a1.Children, 1)
	assert.Equal(t, "S1", a1.Children[0].Text)
	require.Len(t, a1.Children[0].Children, 1)
	assert.Equal(t, "S2", a1.Children[0].Children[0].Text)
	assert.Empty(t, c1.Children[1].Children)
	assert.Equal(t, "C2", nested[1].Text)
}

func TestNestOutlineLevelJump(t *testing.T) {
	// A section two levels deeper still nests under the nearest shallower
	// entry.
	flat := []*OutlineEntry{
		{Text: "A", Level: -1},
		{Text: "Deep", Level: 2},
	}
	nested := nestOutline(flat)
	require.Len(t, nested, 1)
	require.Len(t, nested[0].Children, 1)
	assert.Equal(t, "Deep", nested[0].Children[0].Text)
}

func TestGetBodyContents(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{page("<p>x</p>"), "<p>x</p>"},
		{"<body class=\"mw-body\"><p>x</p></body></html>", "<p>x</p>"},
		{"<p>already a fragment</p>", "<p>already a fragment</p>"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, getBodyContents(tc.in))
	}
}

func TestFixTemplateData(t *testing.T) {
	fixed := fixTemplateData(map[string]interface{}{
		"title":    "Book",
		"subtitle": "",
		"count":    0,
		"zero":     "0",
		"flag":     false,
		"items":    []interface{}{map[string]interface{}{"credit": ""}},
		"empty":    []interface{}{},
	})

	assert.Equal(t, true, fixed["title?"])
	assert.Equal(t, false, fixed["subtitle?"])
	// Zero values are present, just numerically zero.
	assert.Equal(t, true, fixed["count?"])
	assert.Equal(t, true, fixed["zero?"])
	assert.Equal(t, false, fixed["flag?"])
	assert.Equal(t, true, fixed["items?"])
	assert.Equal(t, false, fixed["empty?"])

	items := fixed["items"].([]interface{})
	item := items[0].(map[string]interface{})
	assert.Equal(t, false, item["credit?"])
}

func TestWrapDocument(t *testing.T) {
	doc := WrapDocument("A & B", "<p>body</p>")
	assert.Contains(t, doc, "<!DOCTYPE html>")
	assert.Contains(t, doc, "<title>A &amp; B</title>")
	assert.Contains(t, doc, "<p>body</p>")
}
