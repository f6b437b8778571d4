package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Validation errors surfaced directly to the caller.
var (
	ErrBadTitle      = errors.New("collection: invalid page title")
	ErrLimitExceeded = errors.New("collection: article limit exceeded")
	ErrPageMissing   = errors.New("collection: page does not exist")
)

// PageInfo is the result of looking up a page's current state in the wiki.
type PageInfo struct {
	Exists         bool
	LatestRevision string
	Timestamp      int64 // timestamp of the latest revision, unix seconds
	URL            string
}

// WikiLookup resolves page existence and revision information. Implemented by
// fetch.Client; tests provide fakes.
type WikiLookup interface {
	PageInfo(ctx context.Context, title string) (*PageInfo, error)
	RevisionTimestamp(ctx context.Context, title, revision string) (int64, error)
	PagesExist(ctx context.Context, titles []string) (map[string]bool, error)
	CategoryMembers(ctx context.Context, category string, limit int) ([]string, error)
}

// Manager mutates session-scoped collections through a Store. All mutations
// are atomic get-then-set; concurrent mutations of one session are
// last-write-wins beyond that.
type Manager struct {
	store       Store
	wiki        WikiLookup
	maxArticles int
	log         *slog.Logger

	mu sync.Mutex
}

// NewManager wires a manager. maxArticles bounds the number of article items
// per collection (the soft cap for category adds and direct adds alike).
func NewManager(store Store, wiki WikiLookup, maxArticles int, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, wiki: wiki, maxArticles: maxArticles, log: log}
}

// Get returns the session's collection, creating an empty one if none exists.
// Articles whose pages no longer exist are purged before returning.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(ctx, sessionID)
}

func (m *Manager) get(ctx context.Context, sessionID string) (*Collection, error) {
	coll, err := m.store.Get(sessionID)
	if errors.Is(err, ErrNotFound) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	if purged, err := m.purge(ctx, coll); err != nil {
		// A failed existence check should not make the collection
		// unreadable; keep the unpurged items.
		m.log.Warn("purge failed, keeping stale items", "session", sessionID, "error", err)
	} else if purged {
		if err := m.store.Set(sessionID, coll); err != nil {
			return nil, err
		}
	}
	return coll, nil
}

// purge drops articles referencing deleted pages, using one batched existence
// check. Returns whether anything was removed.
func (m *Manager) purge(ctx context.Context, coll *Collection) (bool, error) {
	var titles []string
	for _, item := range coll.Items {
		if a, ok := item.(*Article); ok {
			titles = append(titles, a.Title)
		}
	}
	if len(titles) == 0 {
		return false, nil
	}
	exists, err := m.wiki.PagesExist(ctx, titles)
	if err != nil {
		return false, err
	}
	kept := coll.Items[:0]
	for _, item := range coll.Items {
		if a, ok := item.(*Article); ok {
			if ok, found := exists[DBKey(a.Title)]; found && !ok {
				continue
			}
		}
		kept = append(kept, item)
	}
	purged := len(kept) != len(coll.Items)
	coll.Items = kept
	return purged, nil
}

// mutate loads the session collection, applies fn and stores the result if fn
// reports a change.
func (m *Manager) mutate(ctx context.Context, sessionID string, fn func(*Collection) (bool, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, err := m.get(ctx, sessionID)
	if err != nil {
		return err
	}
	changed, err := fn(coll)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return m.store.Set(sessionID, coll)
}

// AddArticle adds a page to the collection. An empty revision pins the
// article to the page's latest revision and marks it as tracking. Returns
// false without error when the page does not exist or the article is already
// in the collection.
func (m *Manager) AddArticle(ctx context.Context, sessionID, title, revision string) (bool, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return false, ErrBadTitle
	}
	added := false
	err := m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		if coll.ArticleCount() >= m.maxArticles {
			return false, ErrLimitExceeded
		}
		if coll.FindArticle(title, revision) != -1 {
			return false, nil
		}
		info, err := m.wiki.PageInfo(ctx, title)
		if err != nil {
			return false, err
		}
		if !info.Exists {
			return false, nil
		}
		article := &Article{
			Title:       title,
			ContentType: "text/x-wiki",
			Latest:      info.LatestRevision,
			URL:         info.URL,
		}
		if revision == "" {
			article.Revision = info.LatestRevision
			article.Timestamp = info.Timestamp
			article.CurrentVersion = true
		} else {
			ts, err := m.wiki.RevisionTimestamp(ctx, title, revision)
			if err != nil {
				return false, err
			}
			article.Revision = revision
			article.Timestamp = ts
		}
		coll.Items = append(coll.Items, article)
		coll.Enabled = true
		added = true
		return true, nil
	})
	return added, err
}

// SingleArticle builds a one-article collection outside any session, used to
// render a single page straight from its title. An empty revision tracks the
// page's latest revision.
func SingleArticle(ctx context.Context, wiki WikiLookup, title, revision string) (*Collection, error) {
	title = NormalizeTitle(title)
	if title == "" {
		return nil, ErrBadTitle
	}
	info, err := wiki.PageInfo(ctx, title)
	if err != nil {
		return nil, err
	}
	if !info.Exists {
		return nil, fmt.Errorf("%w: %s", ErrPageMissing, title)
	}
	article := &Article{
		Title:       title,
		ContentType: "text/x-wiki",
		Latest:      info.LatestRevision,
		URL:         info.URL,
	}
	if revision == "" {
		article.Revision = info.LatestRevision
		article.Timestamp = info.Timestamp
		article.CurrentVersion = true
	} else {
		ts, err := wiki.RevisionTimestamp(ctx, title, revision)
		if err != nil {
			return nil, err
		}
		article.Revision = revision
		article.Timestamp = ts
	}
	coll := New()
	coll.Title = title
	coll.Items = append(coll.Items, article)
	return coll, nil
}

// RemoveArticle removes the matching article. Returns false when no match
// was found.
func (m *Manager) RemoveArticle(ctx context.Context, sessionID, title, revision string) (bool, error) {
	removed := false
	err := m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		index := coll.FindArticle(title, revision)
		if index == -1 {
			return false, nil
		}
		coll.Items = append(coll.Items[:index], coll.Items[index+1:]...)
		removed = true
		return true, nil
	})
	return removed, err
}

// AddChapter appends a chapter heading.
func (m *Manager) AddChapter(ctx context.Context, sessionID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrBadTitle
	}
	return m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		coll.Items = append(coll.Items, &Chapter{Title: name})
		return true, nil
	})
}

// RenameChapter renames the chapter at index. Returns false when the index
// does not exist or is not a chapter.
func (m *Manager) RenameChapter(ctx context.Context, sessionID string, index int, name string) (bool, error) {
	renamed := false
	err := m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		if index < 0 || index >= len(coll.Items) {
			return false, nil
		}
		ch, ok := coll.Items[index].(*Chapter)
		if !ok {
			return false, nil
		}
		ch.Title = name
		renamed = true
		return true, nil
	})
	return renamed, err
}

// AddCategory adds the members of a category up to the remaining article
// limit. Returns the number of articles actually added and whether the limit
// cut the category short.
func (m *Manager) AddCategory(ctx context.Context, sessionID, category string) (int, bool, error) {
	category = NormalizeTitle(category)
	if category == "" {
		return 0, false, ErrBadTitle
	}
	coll, err := m.Get(ctx, sessionID)
	if err != nil {
		return 0, false, err
	}
	limit := m.maxArticles - coll.ArticleCount()
	if limit <= 0 {
		return 0, true, nil
	}
	// Fetch one extra member to detect truncation.
	members, err := m.wiki.CategoryMembers(ctx, category, limit+1)
	if err != nil {
		return 0, false, err
	}
	limitExceeded := len(members) > limit
	if limitExceeded {
		members = members[:limit]
	}
	added := 0
	for _, member := range members {
		ok, err := m.AddArticle(ctx, sessionID, member, "")
		if err != nil {
			return added, limitExceeded, err
		}
		if ok {
			added++
		}
	}
	return added, limitExceeded, nil
}

// SetTitles sets the book title, subtitle and cover preface.
func (m *Manager) SetTitles(ctx context.Context, sessionID, title, subtitle, preface string) error {
	return m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		coll.Title = title
		coll.Subtitle = subtitle
		coll.Preface = preface
		return true, nil
	})
}

// SetSettings merges the given renderer settings into the collection.
// Existing keys are preserved unless explicitly overwritten.
func (m *Manager) SetSettings(ctx context.Context, sessionID string, settings map[string]string) error {
	return m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		if coll.Settings == nil {
			coll.Settings = map[string]string{}
		}
		for k, v := range settings {
			coll.Settings[k] = v
		}
		return true, nil
	})
}

// SortItems sorts articles alphabetically within each chapter group.
func (m *Manager) SortItems(ctx context.Context, sessionID string) error {
	return m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		byTitle := func(items []Item) {
			sort.SliceStable(items, func(i, j int) bool {
				return strings.ToLower(items[i].ItemTitle()) < strings.ToLower(items[j].ItemTitle())
			})
		}
		var sorted, group []Item
		for _, item := range coll.Items {
			if item.Type() == ChapterItem {
				byTitle(group)
				sorted = append(sorted, group...)
				sorted = append(sorted, item)
				group = nil
			} else {
				group = append(group, item)
			}
		}
		byTitle(group)
		coll.Items = append(sorted, group...)
		return true, nil
	})
}

// SetSorting reorders items by a new-to-old index mapping. Old positions
// missing from the mapping are dropped; stale old indexes are skipped so that
// replaying the same mapping stays safe.
func (m *Manager) SetSorting(ctx context.Context, sessionID string, order []int) error {
	return m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		var items []Item
		for _, oldIndex := range order {
			if oldIndex >= 0 && oldIndex < len(coll.Items) {
				items = append(items, coll.Items[oldIndex])
			}
		}
		coll.Items = items
		return true, nil
	})
}

// MoveItem swaps the item at index with the one delta positions away.
// Returns false when either position is out of range.
func (m *Manager) MoveItem(ctx context.Context, sessionID string, index, delta int) (bool, error) {
	moved := false
	err := m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		swap := index + delta
		if index < 0 || index >= len(coll.Items) || swap < 0 || swap >= len(coll.Items) {
			return false, nil
		}
		coll.Items[index], coll.Items[swap] = coll.Items[swap], coll.Items[index]
		moved = true
		return true, nil
	})
	return moved, err
}

// RemoveItem removes the item at index. Returns false when out of range.
func (m *Manager) RemoveItem(ctx context.Context, sessionID string, index int) (bool, error) {
	removed := false
	err := m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		if index < 0 || index >= len(coll.Items) {
			return false, nil
		}
		coll.Items = append(coll.Items[:index], coll.Items[index+1:]...)
		removed = true
		return true, nil
	})
	return removed, err
}

// Replace overwrites the whole session collection, e.g. after loading a
// saved book page.
func (m *Manager) Replace(ctx context.Context, sessionID string, coll *Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Set(sessionID, coll)
}

// Clear resets the session to a fresh, enabled collection.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Set(sessionID, New())
}

// Disable clears the collection and turns book mode off for the session.
func (m *Manager) Disable(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := New()
	coll.Enabled = false
	return m.store.Set(sessionID, coll)
}

// Ban adds a title to the session's suggestion ban list and removes any
// matching article.
func (m *Manager) Ban(ctx context.Context, sessionID, title string) error {
	title = NormalizeTitle(title)
	if title == "" {
		return ErrBadTitle
	}
	return m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		if !coll.IsBanned(title) {
			coll.Banned = append(coll.Banned, title)
		}
		if index := coll.FindArticle(title, ""); index != -1 {
			coll.Items = append(coll.Items[:index], coll.Items[index+1:]...)
		}
		return true, nil
	})
}

// Unban removes a title from the suggestion ban list.
func (m *Manager) Unban(ctx context.Context, sessionID, title string) error {
	want := DBKey(title)
	return m.mutate(ctx, sessionID, func(coll *Collection) (bool, error) {
		for i, b := range coll.Banned {
			if DBKey(b) == want {
				coll.Banned = append(coll.Banned[:i], coll.Banned[i+1:]...)
				return true, nil
			}
		}
		return false, nil
	})
}

// String renders a short human-readable description, used in logs.
func (m *Manager) String() string {
	return fmt.Sprintf("collection.Manager(max=%d)", m.maxArticles)
}
