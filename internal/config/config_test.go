package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "/w", cfg.Wiki.ScriptPath)
	assert.Equal(t, "/api/rest_v1", cfg.Wiki.RestPath)
	assert.Equal(t, "rl", cfg.Render.DefaultWriter)
	assert.Equal(t, ".php", cfg.Render.ScriptExtension)
	assert.Equal(t, 500, cfg.Limits.MaxArticles)
	assert.Equal(t, "disk", cfg.Store.Type)
	assert.Equal(t, 60, cfg.Cache.TTLMinutes)
	assert.Equal(t, ":8475", cfg.Server.Addr)
}

func TestLoadFromString(t *testing.T) {
	cfg, err := LoadFromString(`
[wiki]
base-url = "https://en.wikipedia.org"
concurrency = 8

[render]
serve-url = "https://serve.example/render"
default-writer = "epub"

[render.writer-to-url]
pdf = "https://pdf.example/render"

[limits]
max-articles = 100

[store]
type = "memory"

[license]
name = "CC BY-SA 4.0"
url = "https://example.org/license"

[pod.partners.pediapress]
post-url = "https://pediapress.com/api/collections/"
`)
	require.NoError(t, err)
	assert.Equal(t, "https://en.wikipedia.org", cfg.Wiki.BaseURL)
	assert.Equal(t, 8, cfg.Wiki.Concurrency)
	assert.Equal(t, "https://serve.example/render", cfg.Render.ServeURL)
	assert.Equal(t, "epub", cfg.Render.DefaultWriter)
	assert.Equal(t, "https://pdf.example/render", cfg.Render.WriterToURL["pdf"])
	assert.Equal(t, 100, cfg.Limits.MaxArticles)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "CC BY-SA 4.0", cfg.License.Name)
	assert.Equal(t, "https://pediapress.com/api/collections/", cfg.Pod.Partners["pediapress"].PostURL)
	// Unset sections keep their defaults.
	assert.Equal(t, ":8475", cfg.Server.Addr)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bindery.toml")
	require.NoError(t, os.WriteFile(path, []byte("[wiki]\nbase-url = \"https://wiki.example\"\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://wiki.example", cfg.Wiki.BaseURL)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BINDERY_WIKI__BASE_URL", "https://env.example")
	t.Setenv("BINDERY_LIMITS__MAX_ARTICLES", "42")
	t.Setenv("BINDERY_SERVER__RATE_LIMIT", "10")

	cfg, err := LoadFromString("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.Wiki.BaseURL)
	assert.Equal(t, 42, cfg.Limits.MaxArticles)
	assert.Equal(t, 10, cfg.Server.RateLimit)
}

func TestSetIgnoresUnknownKeys(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Set("nonsense.key", "value")
	cfg.Set("wiki.unknown", "value")
	cfg.Set("limits.max-articles", "not a number")
	assert.Equal(t, 500, cfg.Limits.MaxArticles)
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	require.Error(t, cfg.Validate(), "base-url is required")

	cfg.Wiki.BaseURL = "https://wiki.example"
	require.NoError(t, cfg.Validate())

	cfg.Store.Type = "carrier-pigeon"
	require.Error(t, cfg.Validate())
}
