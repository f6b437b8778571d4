package collection

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWiki serves canned page info keyed by DB key.
type fakeWiki struct {
	pages      map[string]*PageInfo
	timestamps map[string]int64 // "title@revision" => timestamp
	categories map[string][]string
}

func newFakeWiki() *fakeWiki {
	return &fakeWiki{
		pages:      map[string]*PageInfo{},
		timestamps: map[string]int64{},
		categories: map[string][]string{},
	}
}

func (w *fakeWiki) addPage(title, latest string, ts int64) {
	w.pages[DBKey(title)] = &PageInfo{
		Exists:         true,
		LatestRevision: latest,
		Timestamp:      ts,
		URL:            "https://wiki.example/wiki/" + DBKey(title),
	}
}

func (w *fakeWiki) PageInfo(_ context.Context, title string) (*PageInfo, error) {
	if info, ok := w.pages[DBKey(title)]; ok {
		return info, nil
	}
	return &PageInfo{}, nil
}

func (w *fakeWiki) RevisionTimestamp(_ context.Context, title, revision string) (int64, error) {
	ts, ok := w.timestamps[DBKey(title)+"@"+revision]
	if !ok {
		return 0, fmt.Errorf("no such revision %s of %s", revision, title)
	}
	return ts, nil
}

func (w *fakeWiki) PagesExist(_ context.Context, titles []string) (map[string]bool, error) {
	result := map[string]bool{}
	for _, title := range titles {
		_, ok := w.pages[DBKey(title)]
		result[DBKey(title)] = ok
	}
	return result, nil
}

func (w *fakeWiki) CategoryMembers(_ context.Context, category string, limit int) ([]string, error) {
	members := w.categories[DBKey(category)]
	if len(members) > limit {
		members = members[:limit]
	}
	return members, nil
}

func newTestManager(wiki WikiLookup, maxArticles int) *Manager {
	return NewManager(NewMemoryStore(), wiki, maxArticles, slog.Default())
}

func TestAddArticleLatest(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("Main Page", "100", 1700000000)
	m := newTestManager(wiki, 500)

	added, err := m.AddArticle(ctx, "s1", "Main_Page", "")
	require.NoError(t, err)
	assert.True(t, added)

	coll, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, coll.Items, 1)
	article := coll.Items[0].(*Article)
	assert.Equal(t, "Main Page", article.Title)
	assert.Equal(t, "100", article.Revision)
	assert.Equal(t, "100", article.Latest)
	assert.Equal(t, int64(1700000000), article.Timestamp)
	assert.True(t, article.CurrentVersion)
	assert.True(t, coll.Enabled)
}

func TestAddArticlePinnedRevision(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("Main Page", "100", 1700000000)
	wiki.timestamps["Main_Page@50"] = 1600000000
	m := newTestManager(wiki, 500)

	added, err := m.AddArticle(ctx, "s1", "Main Page", "50")
	require.NoError(t, err)
	assert.True(t, added)

	coll, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	article := coll.Items[0].(*Article)
	assert.Equal(t, "50", article.Revision)
	assert.Equal(t, "100", article.Latest)
	assert.Equal(t, int64(1600000000), article.Timestamp)
	assert.False(t, article.CurrentVersion)
}

func TestAddArticleDuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("Main Page", "100", 1700000000)
	m := newTestManager(wiki, 500)

	added, err := m.AddArticle(ctx, "s1", "Main Page", "")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = m.AddArticle(ctx, "s1", "Main_Page", "")
	require.NoError(t, err)
	assert.False(t, added, "duplicate add must be a no-op")

	added, err = m.AddArticle(ctx, "s1", "No Such Page", "")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = m.AddArticle(ctx, "s1", "   ", "")
	require.ErrorIs(t, err, ErrBadTitle)
}

func TestAddArticleLimit(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("One", "1", 1)
	wiki.addPage("Two", "2", 2)
	m := newTestManager(wiki, 1)

	added, err := m.AddArticle(ctx, "s1", "One", "")
	require.NoError(t, err)
	assert.True(t, added)

	_, err = m.AddArticle(ctx, "s1", "Two", "")
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestRemoveArticle(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("Main Page", "100", 1700000000)
	m := newTestManager(wiki, 500)

	_, err := m.AddArticle(ctx, "s1", "Main Page", "")
	require.NoError(t, err)

	removed, err := m.RemoveArticle(ctx, "s1", "Other", "")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = m.RemoveArticle(ctx, "s1", "Main Page", "")
	require.NoError(t, err)
	assert.True(t, removed)

	coll, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, coll.Items)
}

func TestPurgeOnGet(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("Stays", "1", 1)
	wiki.addPage("Goes", "2", 2)
	m := newTestManager(wiki, 500)

	_, err := m.AddArticle(ctx, "s1", "Stays", "")
	require.NoError(t, err)
	_, err = m.AddArticle(ctx, "s1", "Goes", "")
	require.NoError(t, err)

	delete(wiki.pages, "Goes")

	coll, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, coll.Items, 1)
	assert.Equal(t, "Stays", coll.Items[0].ItemTitle())

	// The purge is persisted, not just applied to the returned copy.
	stored, err := m.store.Get("s1")
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
}

func TestAddCategory(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	for i := 1; i <= 5; i++ {
		wiki.addPage(fmt.Sprintf("Page %d", i), "1", 1)
		wiki.categories["Category:Stuff"] = append(wiki.categories["Category:Stuff"], fmt.Sprintf("Page %d", i))
	}
	m := newTestManager(wiki, 3)

	added, limitExceeded, err := m.AddCategory(ctx, "s1", "Category:Stuff")
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.True(t, limitExceeded)

	coll, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, coll.ArticleCount())

	// A second add finds everything either present or over the limit.
	added, limitExceeded, err = m.AddCategory(ctx, "s1", "Category:Stuff")
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.True(t, limitExceeded)
}

func TestAddCategoryWithinLimit(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("Only Page", "1", 1)
	wiki.categories["Category:Small"] = []string{"Only Page"}
	m := newTestManager(wiki, 500)

	added, limitExceeded, err := m.AddCategory(ctx, "s1", "Category:Small")
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.False(t, limitExceeded)
}

func TestChapters(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newFakeWiki(), 500)

	require.NoError(t, m.AddChapter(ctx, "s1", "Basics"))
	require.NoError(t, m.AddChapter(ctx, "s1", "Advanced"))

	renamed, err := m.RenameChapter(ctx, "s1", 0, "Fundamentals")
	require.NoError(t, err)
	assert.True(t, renamed)

	renamed, err = m.RenameChapter(ctx, "s1", 5, "Nope")
	require.NoError(t, err)
	assert.False(t, renamed)

	coll, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Fundamentals", coll.Items[0].ItemTitle())
}

func TestSetTitlesAndSettings(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newFakeWiki(), 500)

	require.NoError(t, m.SetTitles(ctx, "s1", "My Book", "First Edition", "# Hello"))
	require.NoError(t, m.SetSettings(ctx, "s1", map[string]string{"papersize": "a4", "toc": "auto"}))
	require.NoError(t, m.SetSettings(ctx, "s1", map[string]string{"toc": "yes"}))

	coll, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "My Book", coll.Title)
	assert.Equal(t, "First Edition", coll.Subtitle)
	assert.Equal(t, "# Hello", coll.Preface)
	// Merge keeps keys the second call did not mention.
	assert.Equal(t, map[string]string{"papersize": "a4", "toc": "yes"}, coll.Settings)
}

func TestSortItems(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newFakeWiki(), 500)
	coll := New()
	coll.Items = []Item{
		&Article{Title: "Zebra"},
		&Article{Title: "apple"},
		&Chapter{Title: "Chapter"},
		&Article{Title: "Banana"},
		&Article{Title: "Aardvark"},
	}
	require.NoError(t, m.Replace(ctx, "s1", coll))
	require.NoError(t, m.SortItems(ctx, "s1"))

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	titles := make([]string, 0, len(got.Items))
	for _, item := range got.Items {
		titles = append(titles, item.ItemTitle())
	}
	// Articles sort within their chapter group, case-insensitively.
	assert.Equal(t, []string{"apple", "Zebra", "Chapter", "Aardvark", "Banana"}, titles)
}

func TestSetSorting(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newFakeWiki(), 500)
	coll := New()
	coll.Items = []Item{
		&Article{Title: "A"},
		&Article{Title: "B"},
		&Article{Title: "C"},
	}
	require.NoError(t, m.Replace(ctx, "s1", coll))

	// Reverse order, dropping B and ignoring a stale index.
	require.NoError(t, m.SetSorting(ctx, "s1", []int{2, 0, 9}))

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "C", got.Items[0].ItemTitle())
	assert.Equal(t, "A", got.Items[1].ItemTitle())
}

func TestMoveItem(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newFakeWiki(), 500)
	coll := New()
	coll.Items = []Item{
		&Article{Title: "A"},
		&Article{Title: "B"},
	}
	require.NoError(t, m.Replace(ctx, "s1", coll))

	moved, err := m.MoveItem(ctx, "s1", 0, 1)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = m.MoveItem(ctx, "s1", 1, 5)
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Items[0].ItemTitle())
	assert.Equal(t, "A", got.Items[1].ItemTitle())
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newFakeWiki(), 500)
	coll := New()
	coll.Items = []Item{&Chapter{Title: "C"}, &Article{Title: "A"}}
	require.NoError(t, m.Replace(ctx, "s1", coll))

	removed, err := m.RemoveItem(ctx, "s1", 0)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.RemoveItem(ctx, "s1", 7)
	require.NoError(t, err)
	assert.False(t, removed)

	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "A", got.Items[0].ItemTitle())
}

func TestClearAndDisable(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("Main Page", "100", 1)
	m := newTestManager(wiki, 500)

	_, err := m.AddArticle(ctx, "s1", "Main Page", "")
	require.NoError(t, err)
	require.NoError(t, m.Clear(ctx, "s1"))

	coll, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, coll.Items)
	assert.True(t, coll.Enabled)

	require.NoError(t, m.Disable(ctx, "s1"))
	coll, err = m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, coll.Enabled)
}

func TestBanRemovesArticle(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("Spam Page", "1", 1)
	m := newTestManager(wiki, 500)

	_, err := m.AddArticle(ctx, "s1", "Spam Page", "")
	require.NoError(t, err)
	require.NoError(t, m.Ban(ctx, "s1", "Spam_Page"))

	coll, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, coll.Items)
	assert.True(t, coll.IsBanned("Spam Page"))

	require.NoError(t, m.Unban(ctx, "s1", "Spam Page"))
	coll, err = m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, coll.IsBanned("Spam Page"))
}

func TestSingleArticle(t *testing.T) {
	ctx := context.Background()
	wiki := newFakeWiki()
	wiki.addPage("Alpha", "10", 1600000000)
	wiki.timestamps[DBKey("Alpha")+"@7"] = 1500000000

	coll, err := SingleArticle(ctx, wiki, "Alpha", "")
	require.NoError(t, err)
	require.Len(t, coll.Items, 1)
	article := coll.Items[0].(*Article)
	assert.Equal(t, "10", article.Revision)
	assert.True(t, article.CurrentVersion)
	assert.Equal(t, "Alpha", coll.Title)

	coll, err = SingleArticle(ctx, wiki, "Alpha", "7")
	require.NoError(t, err)
	article = coll.Items[0].(*Article)
	assert.Equal(t, "7", article.Revision)
	assert.False(t, article.CurrentVersion)
	assert.Equal(t, int64(1500000000), article.Timestamp)

	_, err = SingleArticle(ctx, wiki, "Missing", "")
	assert.ErrorIs(t, err, ErrPageMissing)

	_, err = SingleArticle(ctx, wiki, "  ", "")
	assert.ErrorIs(t, err, ErrBadTitle)
}
