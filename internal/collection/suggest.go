package collection

import (
	"context"
	"sort"
	"strings"
)

// LinkSource resolves the outgoing article links of wiki pages. Implemented
// by fetch.Client.
type LinkSource interface {
	LinkedTitles(ctx context.Context, titles []string) (map[string][]string, error)
}

// Suggestion is one proposed article with its link weight.
type Suggestion struct {
	Title string `json:"title"`
	// Weight is the number of collection articles linking to the title.
	Weight int `json:"weight"`
}

// Suggester proposes articles related to a collection by counting how often
// the collection's articles link to them.
type Suggester struct {
	links LinkSource
	limit int
}

// NewSuggester returns a suggester that proposes at most limit titles.
func NewSuggester(links LinkSource, limit int) *Suggester {
	if limit <= 0 {
		limit = 10
	}
	return &Suggester{links: links, limit: limit}
}

// Suggest returns proposals for the given collection, ordered by descending
// link weight. Titles already in the collection or on its ban list are never
// proposed. An empty collection yields no proposals.
func (s *Suggester) Suggest(ctx context.Context, coll *Collection) ([]Suggestion, error) {
	articles := coll.Articles()
	if len(articles) == 0 {
		return nil, nil
	}

	titles := make([]string, 0, len(articles))
	included := map[string]bool{}
	for _, a := range articles {
		titles = append(titles, a.Title)
		included[a.DBKey()] = true
	}
	linked, err := s.links.LinkedTitles(ctx, titles)
	if err != nil {
		return nil, err
	}

	weight := map[string]int{}
	for _, targets := range linked {
		seen := map[string]bool{}
		for _, target := range targets {
			key := DBKey(target)
			if key == "" || seen[key] || included[key] || coll.IsBanned(target) {
				continue
			}
			// Each source article counts once per target.
			seen[key] = true
			weight[NormalizeTitle(target)]++
		}
	}

	proposals := make([]Suggestion, 0, len(weight))
	for title, w := range weight {
		proposals = append(proposals, Suggestion{Title: title, Weight: w})
	}
	sort.Slice(proposals, func(i, j int) bool {
		if proposals[i].Weight != proposals[j].Weight {
			return proposals[i].Weight > proposals[j].Weight
		}
		return strings.ToLower(proposals[i].Title) < strings.ToLower(proposals[j].Title)
	})
	if len(proposals) > s.limit {
		proposals = proposals[:s.limit]
	}
	return proposals, nil
}
