package fetch

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pagefold/bindery/internal/collection"
)

// FetchMetadata derives the book metadata for a collection from its fetched
// pages plus the action API: per-article sections and display titles, the
// images referenced by all pages, and the union of page contributors.
func (c *Client) FetchMetadata(ctx context.Context, coll *collection.Collection, pages map[string]string) (*collection.Metadata, error) {
	meta := collection.NewMetadata()
	meta.License = c.license

	seenImages := map[string]bool{}
	for _, article := range coll.Articles() {
		dbkey := article.DBKey()
		html, ok := pages[dbkey]
		if !ok {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			// goquery's parser recovers from almost anything; a real
			// error means the page is unusable.
			return nil, err
		}
		meta.Sections[dbkey] = articleSections(doc)
		for _, img := range articleImages(doc) {
			if seenImages[img.URL] {
				continue
			}
			seenImages[img.URL] = true
			meta.Images = append(meta.Images, img)
		}
		if meta.DisplayTitle[dbkey] == "" {
			meta.DisplayTitle[dbkey] = article.Title
		}
	}

	if err := c.fillAPIMetadata(ctx, coll, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// articleSections lists the page's headings as intrinsic 0-based depths:
// Parsoid emits article content headings starting at h2.
func articleSections(doc *goquery.Document) []collection.Section {
	var sections []collection.Section
	doc.Find("h2, h3, h4, h5, h6").Each(func(_ int, sel *goquery.Selection) {
		id := sel.AttrOr("id", "")
		if id == "" {
			// Headings inside infoboxes and the like carry no anchor;
			// they are not sections of the article.
			return
		}
		tag := goquery.NodeName(sel)
		sections = append(sections, collection.Section{
			Title: strings.TrimSpace(sel.Text()),
			ID:    id,
			Level: int(tag[1]-'0') - 2,
		})
	})
	return sections
}

func articleImages(doc *goquery.Document) []collection.ImageRef {
	var images []collection.ImageRef
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := sel.AttrOr("src", "")
		if src == "" {
			return
		}
		title := sel.AttrOr("resource", "")
		if title == "" {
			if u, err := url.Parse(src); err == nil {
				title = path.Base(u.Path)
			}
		}
		images = append(images, collection.ImageRef{
			Title:  strings.TrimPrefix(title, "./"),
			URL:    src,
			Credit: sel.AttrOr("alt", ""),
		})
	})
	return images
}

// fillAPIMetadata batches one action API query for display titles and
// contributors over all articles.
func (c *Client) fillAPIMetadata(ctx context.Context, coll *collection.Collection, meta *collection.Metadata) error {
	articles := coll.Articles()
	if len(articles) == 0 {
		return nil
	}
	for start := 0; start < len(articles); start += apiBatchSize {
		end := start + apiBatchSize
		if end > len(articles) {
			end = len(articles)
		}
		titles := make([]string, 0, end-start)
		for _, article := range articles[start:end] {
			titles = append(titles, article.Title)
		}
		params := url.Values{}
		params.Set("titles", strings.Join(titles, "|"))
		params.Set("prop", "info|contributors")
		params.Set("inprop", "displaytitle")
		params.Set("pclimit", "max")
		resp, err := c.apiQuery(ctx, params)
		if err != nil {
			return err
		}
		for _, page := range resp.Query.Pages {
			dbkey := collection.DBKey(page.Title)
			if page.DisplayTitle != "" {
				meta.DisplayTitle[dbkey] = page.DisplayTitle
			}
			for _, contributor := range page.Contributors {
				meta.Contributors[contributor.Name] = contributor.UserID
			}
		}
	}
	return nil
}

const apiBatchSize = 50
