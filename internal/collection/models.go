package collection

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ItemType identifies the kind of a collection item. The string values are
// part of the session and metabook wire formats.
type ItemType string

const (
	ChapterItem ItemType = "chapter"
	ArticleItem ItemType = "article"
)

// Item is a single entry in a collection: either a chapter heading or an
// article reference. Item order is significant; articles following a chapter
// belong to it until the next chapter or the end of the list.
type Item interface {
	Type() ItemType
	ItemTitle() string
}

// Chapter is a structural heading grouping the articles that follow it.
type Chapter struct {
	Title string
}

// Type returns the item type.
func (c *Chapter) Type() ItemType { return ChapterItem }

// ItemTitle returns the chapter heading text.
func (c *Chapter) ItemTitle() string { return c.Title }

// Article references one wiki page at an exact revision.
type Article struct {
	Title       string // prefixed page name, e.g. "Help:Books"
	ContentType string // always "text/x-wiki" for wiki pages
	Revision    string // pinned revision id
	Latest      string // latest revision id at the time of adding
	Timestamp   int64  // revision timestamp, unix seconds
	URL         string // canonical page URL
	// CurrentVersion is true when the article tracks the latest revision
	// instead of staying pinned to Revision.
	CurrentVersion bool
}

// Type returns the item type.
func (a *Article) Type() ItemType { return ArticleItem }

// ItemTitle returns the prefixed page name.
func (a *Article) ItemTitle() string { return a.Title }

// DBKey returns the page name in database-key form (spaces as underscores),
// used for anchors and as the key of fetched page maps.
func (a *Article) DBKey() string { return DBKey(a.Title) }

// Collection is the book a user is assembling. It lives in a session store
// and is mutated through Manager.
type Collection struct {
	Enabled  bool
	Title    string
	Subtitle string
	// Preface is optional Markdown shown on the cover page.
	Preface  string
	Settings map[string]string
	Items    []Item
	// Banned holds article titles excluded from suggestions.
	Banned []string
}

// New returns an empty, enabled collection.
func New() *Collection {
	return &Collection{
		Enabled:  true,
		Settings: map[string]string{},
		Items:    []Item{},
	}
}

// HasChapters reports whether any item is a chapter.
func (c *Collection) HasChapters() bool {
	for _, item := range c.Items {
		if item.Type() == ChapterItem {
			return true
		}
	}
	return false
}

// ArticleCount returns the number of article items.
func (c *Collection) ArticleCount() int {
	n := 0
	for _, item := range c.Items {
		if item.Type() == ArticleItem {
			n++
		}
	}
	return n
}

// Articles returns the article items in collection order.
func (c *Collection) Articles() []*Article {
	var articles []*Article
	for _, item := range c.Items {
		if a, ok := item.(*Article); ok {
			articles = append(articles, a)
		}
	}
	return articles
}

// FindArticle returns the index of the article with the given title, or -1.
// With a non-empty revision the revision must match exactly; otherwise the
// article must be at its latest revision.
func (c *Collection) FindArticle(title, revision string) int {
	want := DBKey(title)
	for i, item := range c.Items {
		a, ok := item.(*Article)
		if !ok {
			continue
		}
		if DBKey(a.Title) != want {
			continue
		}
		if revision != "" {
			if a.Revision == revision {
				return i
			}
		} else if a.Revision == a.Latest {
			return i
		}
	}
	return -1
}

// IsBanned reports whether a title is on the suggestion ban list.
func (c *Collection) IsBanned(title string) bool {
	want := DBKey(title)
	for _, b := range c.Banned {
		if DBKey(b) == want {
			return true
		}
	}
	return false
}

// NormalizeTitle canonicalizes a page name: underscores become spaces and
// surrounding whitespace is trimmed.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	return strings.Join(strings.Fields(title), " ")
}

// DBKey converts a page name to database-key form.
func DBKey(title string) string {
	return strings.ReplaceAll(NormalizeTitle(title), " ", "_")
}

// itemJSON is the wire shape of an item in the session store and the
// metabook document.
type itemJSON struct {
	Type           ItemType `json:"type"`
	Title          string   `json:"title"`
	ContentType    string   `json:"content_type,omitempty"`
	Revision       string   `json:"revision,omitempty"`
	Latest         string   `json:"latest,omitempty"`
	Timestamp      int64    `json:"timestamp,omitempty"`
	URL            string   `json:"url,omitempty"`
	CurrentVersion int      `json:"currentVersion,omitempty"`
}

type collectionJSON struct {
	Enabled  bool              `json:"enabled"`
	Title    string            `json:"title"`
	Subtitle string            `json:"subtitle"`
	Preface  string            `json:"preface,omitempty"`
	Settings map[string]string `json:"settings"`
	Items    []itemJSON        `json:"items"`
	Banned   []string          `json:"banned,omitempty"`
}

func itemToJSON(item Item) itemJSON {
	switch it := item.(type) {
	case *Chapter:
		return itemJSON{Type: ChapterItem, Title: it.Title}
	case *Article:
		current := 0
		if it.CurrentVersion {
			current = 1
		}
		return itemJSON{
			Type:           ArticleItem,
			Title:          it.Title,
			ContentType:    it.ContentType,
			Revision:       it.Revision,
			Latest:         it.Latest,
			Timestamp:      it.Timestamp,
			URL:            it.URL,
			CurrentVersion: current,
		}
	default:
		// Item is a closed union; reaching this is a bug in the caller.
		panic(fmt.Sprintf("collection: unknown item type %T", item))
	}
}

func itemFromJSON(raw itemJSON) (Item, error) {
	switch raw.Type {
	case ChapterItem:
		return &Chapter{Title: raw.Title}, nil
	case ArticleItem:
		return &Article{
			Title:          raw.Title,
			ContentType:    raw.ContentType,
			Revision:       raw.Revision,
			Latest:         raw.Latest,
			Timestamp:      raw.Timestamp,
			URL:            raw.URL,
			CurrentVersion: raw.CurrentVersion != 0,
		}, nil
	default:
		return nil, fmt.Errorf("collection: unknown item type %q", raw.Type)
	}
}

// MarshalJSON implements json.Marshaler.
func (c *Collection) MarshalJSON() ([]byte, error) {
	out := collectionJSON{
		Enabled:  c.Enabled,
		Title:    c.Title,
		Subtitle: c.Subtitle,
		Preface:  c.Preface,
		Settings: c.Settings,
		Items:    make([]itemJSON, 0, len(c.Items)),
		Banned:   c.Banned,
	}
	if out.Settings == nil {
		out.Settings = map[string]string{}
	}
	for _, item := range c.Items {
		out.Items = append(out.Items, itemToJSON(item))
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var raw collectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Enabled = raw.Enabled
	c.Title = raw.Title
	c.Subtitle = raw.Subtitle
	c.Preface = raw.Preface
	c.Settings = raw.Settings
	if c.Settings == nil {
		c.Settings = map[string]string{}
	}
	c.Banned = raw.Banned
	c.Items = make([]Item, 0, len(raw.Items))
	for _, rawItem := range raw.Items {
		item, err := itemFromJSON(rawItem)
		if err != nil {
			return err
		}
		c.Items = append(c.Items, item)
	}
	return nil
}
