// Package parser reads and writes saved book pages: the wikitext format a
// collection is persisted as when a user saves their book on the wiki.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pagefold/bindery/internal/collection"
)

// BookEntry is one parsed line of a book page's item list.
type BookEntry struct {
	Type         string // "chapter" or "article"
	Title        string
	DisplayTitle string
	// Revision pins an article; empty means the current version.
	Revision string
}

// BookPage is a parsed saved book page. Entries still reference pages by
// title; resolving them against the live wiki happens when the book is
// loaded into a session.
type BookPage struct {
	Title    string
	Subtitle string
	Settings map[string]string
	Entries  []BookEntry
}

var (
	subtitleRegex = regexp.MustCompile(`^===\s*(.*?)\s*===$`)
	titleRegex    = regexp.MustCompile(`^==\s*(.*?)\s*==$`)
	settingRegex  = regexp.MustCompile(`^\s*\|\s*setting-([a-zA-Z0-9_-]+)\s*=\s*([^|]*?)\s*$`)
	linkRegex     = regexp.MustCompile(`^\[\[:?(.*?)(\|(.*?))?\]\]$`)
	oldidRegex    = regexp.MustCompile(`^\[\{\{fullurl:(.*?)\|oldid=(.*?)\}\}\s+(.*?)\]$`)
)

// ParseBookPage parses book page wikitext. Unrecognized lines are ignored,
// matching how hand-edited book pages have always been treated.
func ParseBookPage(content string) *BookPage {
	page := &BookPage{Settings: map[string]string{}}

	for _, line := range strings.FieldsFunc(content, func(r rune) bool { return r == '\n' || r == '\r' }) {
		line = strings.TrimSpace(line)
		switch {
		case subtitleRegex.MatchString(line):
			page.Subtitle = subtitleRegex.FindStringSubmatch(line)[1]
		case titleRegex.MatchString(line):
			page.Title = titleRegex.FindStringSubmatch(line)[1]
		case settingRegex.MatchString(line):
			match := settingRegex.FindStringSubmatch(line)
			page.Settings[match[1]] = match[2]
		case strings.HasPrefix(line, ";"):
			page.Entries = append(page.Entries, BookEntry{
				Type:  "chapter",
				Title: strings.TrimSpace(line[1:]),
			})
		case strings.HasPrefix(line, ":"):
			if entry, ok := parseArticleLine(strings.TrimSpace(line[1:])); ok {
				page.Entries = append(page.Entries, entry)
			}
		}
	}
	return page
}

func parseArticleLine(text string) (BookEntry, bool) {
	if match := linkRegex.FindStringSubmatch(text); match != nil {
		return BookEntry{
			Type:         "article",
			Title:        collection.NormalizeTitle(match[1]),
			DisplayTitle: match[3],
		}, true
	}
	if match := oldidRegex.FindStringSubmatch(text); match != nil {
		return BookEntry{
			Type:         "article",
			Title:        collection.NormalizeTitle(match[1]),
			DisplayTitle: match[3],
			Revision:     match[2],
		}, true
	}
	return BookEntry{}, false
}

// ComposeBookPage serializes a collection back into book page wikitext, the
// inverse of ParseBookPage.
func ComposeBookPage(coll *collection.Collection) string {
	var b strings.Builder
	if coll.Title != "" {
		fmt.Fprintf(&b, "== %s ==\n", coll.Title)
	}
	if coll.Subtitle != "" {
		fmt.Fprintf(&b, "=== %s ===\n", coll.Subtitle)
	}
	for _, key := range sortedSettingKeys(coll.Settings) {
		fmt.Fprintf(&b, "| setting-%s = %s\n", key, coll.Settings[key])
	}
	for _, item := range coll.Items {
		switch it := item.(type) {
		case *collection.Chapter:
			fmt.Fprintf(&b, ";%s\n", it.Title)
		case *collection.Article:
			if it.CurrentVersion {
				fmt.Fprintf(&b, ":[[%s]]\n", it.Title)
			} else {
				fmt.Fprintf(&b, ":[{{fullurl:%s|oldid=%s}} %s]\n", it.Title, it.Revision, it.Title)
			}
		}
	}
	return b.String()
}

func sortedSettingKeys(settings map[string]string) []string {
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
