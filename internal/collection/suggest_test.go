package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLinks struct {
	links map[string][]string
}

func (f *fakeLinks) LinkedTitles(_ context.Context, titles []string) (map[string][]string, error) {
	result := map[string][]string{}
	for _, title := range titles {
		result[DBKey(title)] = f.links[DBKey(title)]
	}
	return result, nil
}

func TestSuggestWeighsByLinkFrequency(t *testing.T) {
	links := &fakeLinks{links: map[string][]string{
		"Alpha": {"Gamma", "Delta", "Gamma"},
		"Beta":  {"Gamma", "Epsilon"},
	}}
	coll := New()
	coll.Items = []Item{
		&Article{Title: "Alpha"},
		&Article{Title: "Beta"},
	}

	got, err := NewSuggester(links, 10).Suggest(context.Background(), coll)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Gamma is linked from both articles; duplicates within one article
	// count once.
	assert.Equal(t, Suggestion{Title: "Gamma", Weight: 2}, got[0])
	assert.Equal(t, Suggestion{Title: "Delta", Weight: 1}, got[1])
	assert.Equal(t, Suggestion{Title: "Epsilon", Weight: 1}, got[2])
}

func TestSuggestExcludesIncludedAndBanned(t *testing.T) {
	links := &fakeLinks{links: map[string][]string{
		"Alpha": {"Beta", "Spam Page", "Gamma"},
	}}
	coll := New()
	coll.Items = []Item{
		&Article{Title: "Alpha"},
		&Article{Title: "Beta"},
	}
	coll.Banned = []string{"Spam Page"}

	got, err := NewSuggester(links, 10).Suggest(context.Background(), coll)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Gamma", got[0].Title)
}

func TestSuggestEmptyCollection(t *testing.T) {
	got, err := NewSuggester(&fakeLinks{}, 10).Suggest(context.Background(), New())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestLimit(t *testing.T) {
	links := &fakeLinks{links: map[string][]string{
		"Alpha": {"B", "C", "D", "E"},
	}}
	coll := New()
	coll.Items = []Item{&Article{Title: "Alpha"}}

	got, err := NewSuggester(links, 2).Suggest(context.Background(), coll)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
