package rendering

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagefold/bindery/internal/collection"
)

func buildDoc(t *testing.T, coll *collection.Collection, cfg Config) map[string]interface{} {
	t.Helper()
	data, err := BuildMetabook(coll, cfg)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestBuildMetabookGroupsChapters(t *testing.T) {
	coll := collection.New()
	coll.Title = "My Book"
	coll.Subtitle = "First Edition"
	coll.Settings["papersize"] = "a4"
	coll.Items = []collection.Item{
		&collection.Article{Title: "Loose", ContentType: "text/x-wiki", Revision: "1", Latest: "1", CurrentVersion: true},
		&collection.Chapter{Title: "Basics"},
		&collection.Article{Title: "Alpha", ContentType: "text/x-wiki", Revision: "2", Latest: "2"},
		&collection.Article{Title: "Beta", ContentType: "text/x-wiki", Revision: "3", Latest: "3"},
		&collection.Chapter{Title: "Advanced"},
	}

	doc := buildDoc(t, coll, Config{BaseURL: "https://wiki.example/w"})

	assert.Equal(t, "collection", doc["type"])
	assert.Equal(t, "My Book", doc["title"])
	assert.Equal(t, "First Edition", doc["subtitle"])
	// Settings are flattened into the document and kept as a copy.
	assert.Equal(t, "a4", doc["papersize"])
	assert.Equal(t, map[string]interface{}{"papersize": "a4"}, doc["settings"])

	items := doc["items"].([]interface{})
	require.Len(t, items, 3)
	loose := items[0].(map[string]interface{})
	assert.Equal(t, "article", loose["type"])
	assert.Equal(t, float64(1), loose["currentVersion"])

	basics := items[1].(map[string]interface{})
	assert.Equal(t, "chapter", basics["type"])
	chapterItems := basics["items"].([]interface{})
	require.Len(t, chapterItems, 2)
	alpha := chapterItems[0].(map[string]interface{})
	assert.Equal(t, "Alpha", alpha["title"])
	assert.Equal(t, float64(0), alpha["currentVersion"])

	// A trailing empty chapter still appears.
	advanced := items[2].(map[string]interface{})
	assert.Equal(t, "Advanced", advanced["title"])
	assert.Empty(t, advanced["items"])
}

func TestBuildMetabookLicenses(t *testing.T) {
	doc := buildDoc(t, collection.New(), Config{
		LicenseName: "CC BY-SA 4.0",
		LicenseURL:  "https://example.org/license",
	})
	licenses := doc["licenses"].([]interface{})
	require.Len(t, licenses, 1)
	license := licenses[0].(map[string]interface{})
	assert.Equal(t, "license", license["type"])
	assert.Equal(t, "CC BY-SA 4.0", license["name"])
	assert.Equal(t, "https://example.org/license", license["mw_license_url"])
}

func TestBuildMetabookWikiConfPriority(t *testing.T) {
	base := Config{BaseURL: "https://wiki.example/w"}

	// RESTBase wins over parsoid.
	cfg := base
	cfg.RestBaseURL = "https://rest.example/wiki.example/v1/"
	cfg.ParsoidURL = "https://parsoid.example"
	doc := buildDoc(t, collection.New(), cfg)
	wiki := doc["wikis"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "wikiconf", wiki["type"])
	assert.Equal(t, "https://wiki.example/w", wiki["baseurl"])
	assert.Equal(t, ".php", wiki["script_extension"])
	assert.Equal(t, "nuwiki", wiki["format"])
	assert.Equal(t, "https://rest.example/wiki.example/v1/", wiki["restbase1"])
	assert.NotContains(t, wiki, "parsoid")

	// Parsoid next.
	cfg = base
	cfg.ParsoidURL = "https://parsoid.example"
	cfg.ParsoidDomain = "wiki.example"
	doc = buildDoc(t, collection.New(), cfg)
	wiki = doc["wikis"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "https://parsoid.example", wiki["parsoid"])
	assert.Equal(t, "wiki.example", wiki["domain"])
	assert.NotContains(t, wiki, "restbase1")

	// Neither: plain action API access.
	doc = buildDoc(t, collection.New(), base)
	wiki = doc["wikis"].([]interface{})[0].(map[string]interface{})
	assert.NotContains(t, wiki, "restbase1")
	assert.NotContains(t, wiki, "parsoid")
}

func TestBuildMetabookDeterministic(t *testing.T) {
	coll := collection.New()
	coll.Title = "Stable"
	coll.Settings["a"] = "1"
	coll.Settings["b"] = "2"
	coll.Items = []collection.Item{&collection.Article{Title: "Alpha"}}
	cfg := Config{BaseURL: "https://wiki.example/w"}

	first, err := BuildMetabook(coll, cfg)
	require.NoError(t, err)
	second, err := BuildMetabook(coll, cfg)
	require.NoError(t, err)
	// The document doubles as a cache fingerprint, so identical content
	// must serialize identically.
	assert.Equal(t, first, second)
}
