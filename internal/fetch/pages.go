package fetch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pagefold/bindery/internal/collection"
)

// FetchPages downloads the rendered HTML of every article in the collection,
// keyed by DB key. Downloads run in parallel up to the client's concurrency
// limit. All-or-nothing: the first failure cancels the remaining downloads
// and fails the whole fetch, since a book with silently missing articles is
// worse than no book.
func (c *Client) FetchPages(ctx context.Context, coll *collection.Collection) (map[string]string, error) {
	articles := coll.Articles()
	pages := make(map[string]string, len(articles))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, article := range articles {
		article := article
		g.Go(func() error {
			revision := article.Revision
			if article.CurrentVersion {
				revision = ""
			}
			html, err := c.fetchHTML(ctx, article.DBKey(), revision)
			if err != nil {
				return err
			}
			mu.Lock()
			pages[article.DBKey()] = html
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}
