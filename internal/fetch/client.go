// Package fetch talks to the source wiki: it downloads rendered page HTML,
// derives section and image metadata, and resolves page existence and
// revision information through the action API.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pagefold/bindery/internal/collection"
)

const defaultConcurrency = 4

// Options configures a Client.
type Options struct {
	// BaseURL is the wiki's origin, e.g. "https://en.wikipedia.org".
	BaseURL string
	// ScriptPath is the action API mount point, default "/w".
	ScriptPath string
	// RestPath is the REST content API mount point, default "/api/rest_v1".
	RestPath string
	// Concurrency bounds parallel page downloads.
	Concurrency int
	UserAgent   string
	// License is attached to fetched metadata, if configured.
	License *collection.LicenseInfo
}

// Client is a wiki API client. It implements collection.WikiLookup and
// collection.LinkSource.
type Client struct {
	baseURL     string
	scriptPath  string
	restPath    string
	concurrency int
	userAgent   string
	license     *collection.LicenseInfo
	http        *http.Client
	log         *slog.Logger
}

// NewClient wires a client. httpClient may be nil.
func NewClient(opts Options, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	scriptPath := opts.ScriptPath
	if scriptPath == "" {
		scriptPath = "/w"
	}
	restPath := opts.RestPath
	if restPath == "" {
		restPath = "/api/rest_v1"
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Client{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		scriptPath:  scriptPath,
		restPath:    restPath,
		concurrency: concurrency,
		userAgent:   opts.UserAgent,
		license:     opts.License,
		http:        httpClient,
		log:         log,
	}
}

// BaseURL returns the wiki origin the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// apiResponse is the subset of an action API response the client reads,
// using formatversion=2 shapes.
type apiResponse struct {
	Query struct {
		Pages []apiPage `json:"pages"`
		CategoryMembers []struct {
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

type apiPage struct {
	PageID       int    `json:"pageid"`
	Title        string `json:"title"`
	Missing      bool   `json:"missing"`
	CanonicalURL string `json:"canonicalurl"`
	DisplayTitle string `json:"displaytitle"`
	Revisions    []struct {
		RevID     int64  `json:"revid"`
		Timestamp string `json:"timestamp"`
	} `json:"revisions"`
	Contributors []struct {
		UserID int    `json:"userid"`
		Name   string `json:"name"`
	} `json:"contributors"`
	Links []struct {
		Title string `json:"title"`
	} `json:"links"`
}

// apiQuery runs one action=query call.
func (c *Client) apiQuery(ctx context.Context, params url.Values) (*apiResponse, error) {
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	endpoint := c.baseURL + c.scriptPath + "/api.php?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: querying %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: query returned HTTP %d", resp.StatusCode)
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("fetch: decoding query response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("fetch: api error %s: %s", decoded.Error.Code, decoded.Error.Info)
	}
	return &decoded, nil
}

// fetchHTML downloads the rendered HTML of one page revision from the REST
// content API.
func (c *Client) fetchHTML(ctx context.Context, dbkey, revision string) (string, error) {
	endpoint := c.baseURL + c.restPath + "/page/html/" + url.PathEscape(dbkey)
	if revision != "" {
		endpoint += "/" + url.PathEscape(revision)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: downloading %s: %w", dbkey, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: downloading %s: HTTP %d", dbkey, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch: reading %s: %w", dbkey, err)
	}
	return string(body), nil
}

func parseTimestamp(ts string) int64 {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0
	}
	return t.Unix()
}
