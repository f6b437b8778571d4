package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pagefold/bindery/internal/collection"
	"github.com/pagefold/bindery/internal/parser"
)

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	coll, err := s.manager.Get(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coll)
}

type articleRequest struct {
	Title    string `json:"title"`
	Revision string `json:"revision"`
}

func (s *Server) handleAddArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	added, err := s.manager.AddArticle(r.Context(), sessionFrom(r.Context()), req.Title, req.Revision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (s *Server) handleRemoveArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	removed, err := s.manager.RemoveArticle(r.Context(), sessionFrom(r.Context()), req.Title, req.Revision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	added, limitExceeded, err := s.manager.AddCategory(r.Context(), sessionFrom(r.Context()), req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"added":          added,
		"limit_exceeded": limitExceeded,
	})
}

func (s *Server) handleAddChapter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.manager.AddChapter(r.Context(), sessionFrom(r.Context()), req.Title); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": true})
}

func (s *Server) handleRenameChapter(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	renamed, err := s.manager.RenameChapter(r.Context(), sessionFrom(r.Context()), index, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"renamed": renamed})
}

func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	moved, err := s.manager.MoveItem(r.Context(), sessionFrom(r.Context()), index, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"moved": moved})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	removed, err := s.manager.RemoveItem(r.Context(), sessionFrom(r.Context()), index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleSetTitles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Subtitle string `json:"subtitle"`
		Preface  string `json:"preface"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.manager.SetTitles(r.Context(), sessionFrom(r.Context()), req.Title, req.Subtitle, req.Preface); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Settings map[string]string `json:"settings"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.manager.SetSettings(r.Context(), sessionFrom(r.Context()), req.Settings); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleSortItems(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.SortItems(r.Context(), sessionFrom(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sorted": true})
}

func (s *Server) handleSetSorting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Order []int `json:"order"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.manager.SetSorting(r.Context(), sessionFrom(r.Context()), req.Order); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sorted": true})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Clear(r.Context(), sessionFrom(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Disable(r.Context(), sessionFrom(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"disabled": true})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	coll, err := s.manager.Get(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	suggestions, err := s.suggester.Suggest(r.Context(), coll)
	if err != nil {
		writeError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []collection.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.manager.Ban(r.Context(), sessionFrom(r.Context()), req.Title); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"banned": true})
}

func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.manager.Unban(r.Context(), sessionFrom(r.Context()), req.Title); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unbanned": true})
}

// handleLoadBookPage replaces the session collection with a saved book page.
// The body is raw book page wikitext. Entries that no longer resolve on the
// wiki are skipped rather than failing the whole load.
func (s *Server) handleLoadBookPage(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable request body"})
		return
	}
	page := parser.ParseBookPage(string(content))

	ctx := r.Context()
	sid := sessionFrom(ctx)
	if err := s.manager.Clear(ctx, sid); err != nil {
		writeError(w, err)
		return
	}
	if err := s.manager.SetTitles(ctx, sid, page.Title, page.Subtitle, ""); err != nil {
		writeError(w, err)
		return
	}
	if len(page.Settings) > 0 {
		if err := s.manager.SetSettings(ctx, sid, page.Settings); err != nil {
			writeError(w, err)
			return
		}
	}

	added, skipped := 0, 0
	limitExceeded := false
	for _, entry := range page.Entries {
		if entry.Type == "chapter" {
			if err := s.manager.AddChapter(ctx, sid, entry.Title); err != nil {
				writeError(w, err)
				return
			}
			continue
		}
		ok, err := s.manager.AddArticle(ctx, sid, entry.Title, entry.Revision)
		switch {
		case errors.Is(err, collection.ErrLimitExceeded):
			limitExceeded = true
		case errors.Is(err, collection.ErrBadTitle):
			skipped++
			continue
		case err != nil:
			writeError(w, err)
			return
		case ok:
			added++
			continue
		default:
			skipped++
			continue
		}
		break
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"added":          added,
		"skipped":        skipped,
		"limit_exceeded": limitExceeded,
	})
}

func (s *Server) handleExportBookPage(w http.ResponseWriter, r *http.Request) {
	coll, err := s.manager.Get(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(parser.ComposeBookPage(coll)))
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid item index"})
		return 0, false
	}
	return index, true
}
