package rendering

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// Client talks to one render service on behalf of one output writer.
type Client struct {
	writer string
	cfg    Config
	http   *http.Client
	log    *slog.Logger
}

// NewClient wires a client for the given writer ("" means the service
// default). httpClient may be nil.
func NewClient(cfg Config, writer string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{writer: writer, cfg: cfg, http: httpClient, log: log}
}

// Render submits a metabook for rendering.
func (c *Client) Render(ctx context.Context, metabook []byte) *APIResult {
	return c.doRender(ctx, url.Values{"metabook": {string(metabook)}})
}

// ForceRender resubmits a job, bypassing the service's cache.
func (c *Client) ForceRender(ctx context.Context, collectionID string) *APIResult {
	return c.doRender(ctx, url.Values{
		"collection_id": {collectionID},
		"force_render":  {"1"},
	})
}

func (c *Client) doRender(ctx context.Context, params url.Values) *APIResult {
	params.Set("base_url", c.cfg.BaseURL)
	params.Set("script_extension", c.cfg.scriptExtension())
	params.Set("language", c.cfg.language())
	return c.makeRequest(ctx, "render", params)
}

// RenderStatus polls a job.
func (c *Client) RenderStatus(ctx context.Context, collectionID string) *APIResult {
	return c.makeRequest(ctx, "render_status", url.Values{"collection_id": {collectionID}})
}

// PostZip submits the job document to a third-party fulfillment endpoint.
func (c *Client) PostZip(ctx context.Context, metabook []byte, podURL string) *APIResult {
	return c.makeRequest(ctx, "zip_post", url.Values{
		"metabook":         {string(metabook)},
		"base_url":         {c.cfg.BaseURL},
		"script_extension": {c.cfg.scriptExtension()},
		"pod_api_url":      {podURL},
	})
}

// Download streams a finished artifact from the service's download command.
// Returns the response body; the caller must close it.
func (c *Client) Download(ctx context.Context, collectionID string) (io.ReadCloser, http.Header, error) {
	endpoint, client := c.endpointFor("download")
	if endpoint == "" {
		return nil, nil, fmt.Errorf("rendering: no render service configured")
	}
	params := c.commonParams("download", url.Values{"collection_id": {collectionID}})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("rendering: download request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("rendering: download returned HTTP %d", resp.StatusCode)
	}
	if ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); ct == "application/json" {
		// The download command answers with JSON only to report errors.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		result := ParseResult(body, c.log)
		return nil, nil, fmt.Errorf("rendering: download failed: %s", result.ErrorText())
	}
	return resp.Body, resp.Header, nil
}

// retryable marks the commands safe to repeat: polls and downloads do not
// mutate job state, submissions do.
func retryable(command string) bool {
	return command == "render_status" || command == "download"
}

// makeRequest posts one command to the service. Transport failures are
// normalized into an empty result so that callers handle them exactly like
// service-reported errors.
func (c *Client) makeRequest(ctx context.Context, command string, params url.Values) *APIResult {
	endpoint, client := c.endpointFor(command)
	if endpoint == "" {
		c.log.Warn("render service URL not configured")
		return &APIResult{}
	}
	form := c.commonParams(command, params).Encode()

	var body []byte
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}

	var err error
	if retryable(command) {
		err = retry.Do(
			attempt,
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(500*time.Millisecond),
		)
	} else {
		err = attempt()
	}
	if err != nil {
		c.log.Warn("render service request failed", "command", command, "error", err)
		return &APIResult{}
	}
	return ParseResult(body, c.log)
}

func (c *Client) commonParams(command string, params url.Values) url.Values {
	params.Set("command", command)
	if c.writer != "" {
		params.Set("writer", c.writer)
	}
	if c.cfg.Credentials != "" {
		params.Set("login_credentials", c.cfg.Credentials)
	}
	return params
}

// endpointFor resolves the service URL for a command: per-command override,
// then per-writer override, then the default. A "proxy|url" value yields a
// client routed through the proxy.
func (c *Client) endpointFor(command string) (string, *http.Client) {
	serveURL := c.cfg.ServeURL
	if c.writer != "" {
		if u, ok := c.cfg.WriterToURL[c.writer]; ok {
			serveURL = u
		}
	}
	if u, ok := c.cfg.CommandToURL[command]; ok {
		serveURL = u
	}
	proxy := ""
	if i := strings.Index(serveURL, "|"); i >= 0 {
		proxy, serveURL = serveURL[:i], serveURL[i+1:]
	}
	if serveURL == "" {
		return "", c.http
	}
	if proxy == "" {
		return serveURL, c.http
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		c.log.Warn("invalid render service proxy", "proxy", proxy, "error", err)
		return serveURL, c.http
	}
	proxied := *c.http
	proxied.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	return serveURL, &proxied
}
