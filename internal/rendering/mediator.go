package rendering

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pagefold/bindery/internal/book"
	"github.com/pagefold/bindery/internal/collection"
)

// BookSource supplies page HTML and metadata for local book assembly.
// Implemented by fetch.Client.
type BookSource interface {
	FetchPages(ctx context.Context, coll *collection.Collection) (map[string]string, error)
	FetchMetadata(ctx context.Context, coll *collection.Collection, pages map[string]string) (*collection.Metadata, error)
}

// RenderHandle identifies a submitted render job.
type RenderHandle struct {
	CollectionID string `json:"collection_id"`
	Writer       string `json:"writer"`
	IsCached     bool   `json:"is_cached"`
}

// Mediator sits between the HTTP layer and both rendering paths: local book
// assembly (fetch + render, cached by content fingerprint) and the external
// render service (submit, poll, download).
type Mediator struct {
	cfg      Config
	source   BookSource
	renderer *book.Renderer
	cache    *gocache.Cache
	http     *http.Client
	log      *slog.Logger
}

// NewMediator wires a mediator. cacheTTL bounds how long assembled books and
// job ids stay cached.
func NewMediator(cfg Config, source BookSource, renderer *book.Renderer, cacheTTL time.Duration, httpClient *http.Client, log *slog.Logger) *Mediator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Mediator{
		cfg:      cfg,
		source:   source,
		renderer: renderer,
		cache:    gocache.New(cacheTTL, 2*cacheTTL),
		http:     httpClient,
		log:      log,
	}
}

func (m *Mediator) clientFor(writer string) *Client {
	return NewClient(m.cfg, writer, m.http, m.log)
}

// Fingerprint identifies a collection's rendered content: the hash of its
// job document, which covers titles, settings, items and license info.
func (m *Mediator) Fingerprint(coll *collection.Collection) (string, error) {
	metabook, err := BuildMetabook(coll, m.cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(metabook)
	return hex.EncodeToString(sum[:]), nil
}

// BookFromCollection assembles the collection locally, serving identical
// content from cache. The returned key can be used with BookByCacheKey and
// Clear.
func (m *Mediator) BookFromCollection(ctx context.Context, coll *collection.Collection) (*book.Book, string, error) {
	fp, err := m.Fingerprint(coll)
	if err != nil {
		return nil, "", err
	}
	key := "book:" + fp
	if cached, ok := m.cache.Get(key); ok {
		return cached.(*book.Book), key, nil
	}

	pages, err := m.source.FetchPages(ctx, coll)
	if err != nil {
		return nil, "", fmt.Errorf("rendering: fetching pages: %w", err)
	}
	meta, err := m.source.FetchMetadata(ctx, coll, pages)
	if err != nil {
		return nil, "", fmt.Errorf("rendering: fetching metadata: %w", err)
	}
	assembled, err := m.renderer.Render(coll, pages, meta)
	if err != nil {
		return nil, "", err
	}
	m.cache.Set(key, assembled, gocache.DefaultExpiration)
	return assembled, key, nil
}

// BookByCacheKey returns a previously assembled book.
func (m *Mediator) BookByCacheKey(key string) (*book.Book, bool) {
	cached, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	return cached.(*book.Book), true
}

// Clear drops one cache entry.
func (m *Mediator) Clear(key string) {
	m.cache.Delete(key)
}

// Render submits the collection to the external render service. Identical
// content submitted for the same writer reuses the known job id instead of
// rendering again.
func (m *Mediator) Render(ctx context.Context, coll *collection.Collection, writer string) (*RenderHandle, error) {
	fp, err := m.Fingerprint(coll)
	if err != nil {
		return nil, err
	}
	jobKey := "job:" + writer + ":" + fp
	if cached, ok := m.cache.Get(jobKey); ok {
		handle := cached.(*RenderHandle)
		return &RenderHandle{CollectionID: handle.CollectionID, Writer: writer, IsCached: true}, nil
	}

	metabook, err := BuildMetabook(coll, m.cfg)
	if err != nil {
		return nil, err
	}
	result := m.clientFor(writer).Render(ctx, metabook)
	if result.IsError() {
		m.log.Error("render submission failed", "writer", writer, "error", result.ErrorText())
		return nil, fmt.Errorf("rendering: render submission failed")
	}
	handle := &RenderHandle{
		CollectionID: result.Get("collection_id"),
		Writer:       writer,
		IsCached:     result.Get("is_cached") != "",
	}
	m.cache.Set(jobKey, handle, gocache.DefaultExpiration)
	return handle, nil
}

// ForceRender rebuilds a job the service reported as cached.
func (m *Mediator) ForceRender(ctx context.Context, collectionID, writer string) (*RenderHandle, error) {
	result := m.clientFor(writer).ForceRender(ctx, collectionID)
	if result.IsError() {
		return nil, fmt.Errorf("rendering: force render failed")
	}
	return &RenderHandle{
		CollectionID: result.Get("collection_id"),
		Writer:       writer,
		IsCached:     result.Get("is_cached") != "",
	}, nil
}

// RenderStatus polls a job and normalizes the response.
func (m *Mediator) RenderStatus(ctx context.Context, collectionID, writer string) (*Status, error) {
	result := m.clientFor(writer).RenderStatus(ctx, collectionID)
	if result.IsError() {
		return nil, fmt.Errorf("rendering: status poll failed")
	}
	return StatusFromResult(result)
}

// PostZip submits the job document to a print-on-demand endpoint. Fire and
// forget: a successful submission returns the service's redirect URL.
func (m *Mediator) PostZip(ctx context.Context, coll *collection.Collection, writer, podURL string) (string, error) {
	metabook, err := BuildMetabook(coll, m.cfg)
	if err != nil {
		return "", err
	}
	result := m.clientFor(writer).PostZip(ctx, metabook, podURL)
	if result.IsError() {
		return "", fmt.Errorf("rendering: zip post failed")
	}
	return result.Get("redirect_url"), nil
}

// ProxyDownload streams a finished artifact to w. When the service hands
// back a direct URL the bytes are proxied through, never redirected to,
// preserving the content headers. Otherwise the download command is used.
func (m *Mediator) ProxyDownload(ctx context.Context, w http.ResponseWriter, collectionID, writer string) error {
	status, err := m.RenderStatus(ctx, collectionID, writer)
	if err != nil {
		return err
	}

	var (
		body        io.ReadCloser
		contentType = status.ContentType
		length      = status.ContentLength
		disposition = status.ContentDisposition
	)
	if status.URL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, status.URL, nil)
		if err != nil {
			return err
		}
		resp, err := m.http.Do(req)
		if err != nil {
			return fmt.Errorf("rendering: proxying download: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("rendering: download URL returned HTTP %d", resp.StatusCode)
		}
		body = resp.Body
	} else {
		var headers http.Header
		body, headers, err = m.clientFor(writer).Download(ctx, collectionID)
		if err != nil {
			return err
		}
		if contentType == "" {
			contentType = headers.Get("Content-Type")
		}
		if length == "" {
			length = headers.Get("Content-Length")
		}
		if disposition == "" {
			disposition = headers.Get("Content-Disposition")
		}
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if length != "" {
		w.Header().Set("Content-Length", length)
	}
	if disposition == "" {
		disposition = m.dispositionFor(contentType)
	}
	if disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	_, err = io.Copy(w, body)
	return err
}

// dispositionFor derives a download filename from the content type when the
// backend provided none.
func (m *Mediator) dispositionFor(contentType string) string {
	mimeType, _, _ := mime.ParseMediaType(contentType)
	filename, ok := m.cfg.ContentTypeToFilename[mimeType]
	if !ok {
		filename, ok = defaultContentTypeToFilename[mimeType]
	}
	if !ok {
		return ""
	}
	return "inline; filename=" + filename
}

var defaultContentTypeToFilename = map[string]string{
	"application/pdf": "collection.pdf",
	"application/zip": "collection.zip",
	"text/plain":      "collection.txt",
}
