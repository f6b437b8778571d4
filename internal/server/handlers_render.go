package server

import (
	"net/http"
	"strconv"

	"github.com/pagefold/bindery/internal/book"
	"github.com/pagefold/bindery/internal/collection"
)

func (s *Server) writerOrDefault(writer string) string {
	if writer == "" {
		return s.cfg.Render.DefaultWriter
	}
	return writer
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Writer string `json:"writer"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	coll, err := s.manager.Get(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	handle, err := s.mediator.Render(r.Context(), coll, s.writerOrDefault(req.Writer))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, handle)
}

// handleRenderArticle renders a single page without touching the session's
// collection, for "download as PDF" links on article pages.
func (s *Server) handleRenderArticle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Revision string `json:"revision"`
		Writer   string `json:"writer"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	coll, err := collection.SingleArticle(r.Context(), s.wiki, req.Title, req.Revision)
	if err != nil {
		writeError(w, err)
		return
	}
	handle, err := s.mediator.Render(r.Context(), coll, s.writerOrDefault(req.Writer))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, handle)
}

func (s *Server) handleForceRender(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CollectionID string `json:"collection_id"`
		Writer       string `json:"writer"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CollectionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "collection_id is required"})
		return
	}
	handle, err := s.mediator.ForceRender(r.Context(), req.CollectionID, s.writerOrDefault(req.Writer))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, handle)
}

func (s *Server) handleRenderStatus(w http.ResponseWriter, r *http.Request) {
	collectionID := r.URL.Query().Get("collection_id")
	if collectionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "collection_id is required"})
		return
	}
	writer := s.writerOrDefault(r.URL.Query().Get("writer"))
	status, err := s.mediator.RenderStatus(r.Context(), collectionID, writer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	collectionID := r.URL.Query().Get("collection_id")
	if collectionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "collection_id is required"})
		return
	}
	writer := s.writerOrDefault(r.URL.Query().Get("writer"))
	if err := s.mediator.ProxyDownload(r.Context(), w, collectionID, writer); err != nil {
		// ProxyDownload only returns an error before writing the body,
		// so the response is still ours to shape.
		writeError(w, err)
	}
}

func (s *Server) handlePostZip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Writer  string `json:"writer"`
		Partner string `json:"partner"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Partner == "" {
		req.Partner = "pediapress"
	}
	partner, ok := s.cfg.Pod.Partners[req.Partner]
	if !ok || partner.PostURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown print-on-demand partner " + strconv.Quote(req.Partner)})
		return
	}
	coll, err := s.manager.Get(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	redirectURL, err := s.mediator.PostZip(r.Context(), coll, s.writerOrDefault(req.Writer), partner.PostURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect_url": redirectURL})
}

// handleBookHTML assembles the session's collection locally and returns it as
// a standalone HTML document.
func (s *Server) handleBookHTML(w http.ResponseWriter, r *http.Request) {
	coll, err := s.manager.Get(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	assembled, key, err := s.mediator.BookFromCollection(r.Context(), coll)
	if err != nil {
		writeError(w, err)
		return
	}
	title := coll.Title
	if title == "" {
		title = "Collection"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Book-Cache-Key", key)
	_, _ = w.Write([]byte(book.WrapDocument(title, assembled.HTML)))
}

func (s *Server) handleBookOutline(w http.ResponseWriter, r *http.Request) {
	coll, err := s.manager.Get(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	assembled, key, err := s.mediator.BookFromCollection(r.Context(), coll)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache_key":    key,
		"outline":      assembled.Outline,
		"contributors": assembled.Contributors,
	})
}

// handleBookCached serves a previously assembled book by its cache key, so a
// client can refetch the document it was handed without replaying assembly.
func (s *Server) handleBookCached(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "key is required"})
		return
	}
	assembled, ok := s.mediator.BookByCacheKey(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no cached book for key"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(book.WrapDocument("Collection", assembled.HTML)))
}

func (s *Server) handleBookCacheClear(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "key is required"})
		return
	}
	s.mediator.Clear(key)
	w.WriteHeader(http.StatusNoContent)
}
