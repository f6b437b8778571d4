package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// WikiConfig describes the source wiki.
type WikiConfig struct {
	BaseURL     string `toml:"base-url"`
	ScriptPath  string `toml:"script-path"`
	RestPath    string `toml:"rest-path"`
	Language    string `toml:"language"`
	UserAgent   string `toml:"user-agent"`
	Concurrency int    `toml:"concurrency"`
}

// DefaultWikiConfig returns a wiki config with defaults
func DefaultWikiConfig() WikiConfig {
	return WikiConfig{
		ScriptPath:  "/w",
		RestPath:    "/api/rest_v1",
		Language:    "en",
		UserAgent:   "bindery/1.0",
		Concurrency: 4,
	}
}

// RenderConfig describes the external render service.
type RenderConfig struct {
	// ServeURL may carry a "proxy|url" prefix to route through a proxy.
	ServeURL string `toml:"serve-url"`
	// WriterToURL and CommandToURL override serve-url per writer/command.
	WriterToURL     map[string]string `toml:"writer-to-url"`
	CommandToURL    map[string]string `toml:"command-to-url"`
	Credentials     string            `toml:"credentials"`
	DefaultWriter   string            `toml:"default-writer"`
	ScriptExtension string            `toml:"script-extension"`
	RestBaseURL     string            `toml:"restbase-url"`
	ParsoidURL      string            `toml:"parsoid-url"`
	ParsoidPrefix   string            `toml:"parsoid-prefix"`
	ParsoidDomain   string            `toml:"parsoid-domain"`
	// ContentTypeToFilename maps a download content type to a filename
	// when the service provides no disposition.
	ContentTypeToFilename map[string]string `toml:"content-type-to-filename"`
}

// DefaultRenderConfig returns a render config with defaults
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		DefaultWriter:   "rl",
		ScriptExtension: ".php",
	}
}

// LimitsConfig bounds collection sizes.
type LimitsConfig struct {
	MaxArticles    int `toml:"max-articles"`
	MaxSuggestions int `toml:"max-suggestions"`
}

// DefaultLimitsConfig returns limits with defaults
func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		MaxArticles:    500,
		MaxSuggestions: 10,
	}
}

// StoreConfig selects where session collections live.
type StoreConfig struct {
	// Type is "memory" or "disk".
	Type string `toml:"type"`
	Path string `toml:"path"`
}

// DefaultStoreConfig returns a store config with defaults
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: "disk",
		Path: "sessions",
	}
}

// CacheConfig tunes the assembled-book cache.
type CacheConfig struct {
	// TTLMinutes is how long assembled books and job ids stay cached.
	TTLMinutes int `toml:"ttl-minutes"`
}

// DefaultCacheConfig returns a cache config with defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTLMinutes: 60}
}

// LicenseConfig is the license embedded in books and job documents.
type LicenseConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// PodPartner is one print-on-demand integration.
type PodPartner struct {
	// PostURL receives the job document of a finished book.
	PostURL string `toml:"post-url"`
}

// PodConfig lists the available print-on-demand partners by name.
type PodConfig struct {
	Partners map[string]PodPartner `toml:"partners"`
}

// ServerConfig tunes the HTTP server.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int `toml:"rate-limit"`
}

// DefaultServerConfig returns a server config with defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8475",
		RateLimit: 120,
	}
}

// Config is the top-level configuration
type Config struct {
	Wiki    WikiConfig    `toml:"wiki"`
	Render  RenderConfig  `toml:"render"`
	Limits  LimitsConfig  `toml:"limits"`
	Store   StoreConfig   `toml:"store"`
	Cache   CacheConfig   `toml:"cache"`
	License LicenseConfig `toml:"license"`
	Pod     PodConfig     `toml:"pod"`
	Server  ServerConfig  `toml:"server"`
}

// NewDefaultConfig returns a config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Wiki:   DefaultWikiConfig(),
		Render: DefaultRenderConfig(),
		Limits: DefaultLimitsConfig(),
		Store:  DefaultStoreConfig(),
		Cache:  DefaultCacheConfig(),
		Server: DefaultServerConfig(),
	}
}

// LoadFromFile loads configuration from a bindery.toml file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromString(string(data))
}

// LoadFromString loads configuration from a TOML string
func LoadFromString(content string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.UpdateFromEnv()
	return cfg, nil
}

// UpdateFromEnv updates config from environment variables
// Variables starting with BINDERY_ are used
// BINDERY_WIKI__BASE_URL -> wiki.base-url
func (c *Config) UpdateFromEnv() {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "BINDERY_") {
			continue
		}

		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimPrefix(parts[0], "BINDERY_")
		value := parts[1]

		configKey := strings.ToLower(key)
		configKey = strings.ReplaceAll(configKey, "__", ".")
		configKey = strings.ReplaceAll(configKey, "_", "-")

		c.Set(configKey, value)
	}
}

// Set sets a configuration value using dot notation (e.g., "wiki.base-url")
func (c *Config) Set(key, value string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return
	}
	section, field := parts[0], parts[1]

	switch section {
	case "wiki":
		c.setWikiValue(field, value)
	case "render":
		c.setRenderValue(field, value)
	case "limits":
		c.setLimitsValue(field, value)
	case "store":
		c.setStoreValue(field, value)
	case "cache":
		c.setCacheValue(field, value)
	case "license":
		c.setLicenseValue(field, value)
	case "server":
		c.setServerValue(field, value)
	}
}

func (c *Config) setWikiValue(field, value string) {
	switch field {
	case "base-url":
		c.Wiki.BaseURL = value
	case "script-path":
		c.Wiki.ScriptPath = value
	case "rest-path":
		c.Wiki.RestPath = value
	case "language":
		c.Wiki.Language = value
	case "user-agent":
		c.Wiki.UserAgent = value
	case "concurrency":
		if n, err := strconv.Atoi(value); err == nil {
			c.Wiki.Concurrency = n
		}
	}
}

func (c *Config) setRenderValue(field, value string) {
	switch field {
	case "serve-url":
		c.Render.ServeURL = value
	case "credentials":
		c.Render.Credentials = value
	case "default-writer":
		c.Render.DefaultWriter = value
	case "script-extension":
		c.Render.ScriptExtension = value
	case "restbase-url":
		c.Render.RestBaseURL = value
	case "parsoid-url":
		c.Render.ParsoidURL = value
	case "parsoid-prefix":
		c.Render.ParsoidPrefix = value
	case "parsoid-domain":
		c.Render.ParsoidDomain = value
	}
}

func (c *Config) setLimitsValue(field, value string) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return
	}
	switch field {
	case "max-articles":
		c.Limits.MaxArticles = n
	case "max-suggestions":
		c.Limits.MaxSuggestions = n
	}
}

func (c *Config) setStoreValue(field, value string) {
	switch field {
	case "type":
		c.Store.Type = value
	case "path":
		c.Store.Path = value
	}
}

func (c *Config) setCacheValue(field, value string) {
	if field == "ttl-minutes" {
		if n, err := strconv.Atoi(value); err == nil {
			c.Cache.TTLMinutes = n
		}
	}
}

func (c *Config) setLicenseValue(field, value string) {
	switch field {
	case "name":
		c.License.Name = value
	case "url":
		c.License.URL = value
	}
}

func (c *Config) setServerValue(field, value string) {
	switch field {
	case "addr":
		c.Server.Addr = value
	case "rate-limit":
		if n, err := strconv.Atoi(value); err == nil {
			c.Server.RateLimit = n
		}
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Wiki.BaseURL == "" {
		return fmt.Errorf("wiki.base-url is required")
	}
	if c.Limits.MaxArticles <= 0 {
		return fmt.Errorf("limits.max-articles must be positive")
	}
	switch c.Store.Type {
	case "memory", "disk":
	default:
		return fmt.Errorf("store.type must be \"memory\" or \"disk\", got %q", c.Store.Type)
	}
	return nil
}
