// Package server exposes the collection and rendering operations over HTTP.
// State is per browser session, tracked with a cookie.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/pagefold/bindery/internal/collection"
	"github.com/pagefold/bindery/internal/config"
	"github.com/pagefold/bindery/internal/rendering"
)

const sessionCookie = "bindery_session"

// WikiService is what the server needs from the wiki beyond collection
// mutations: resolution of saved book pages. Implemented by fetch.Client.
type WikiService interface {
	collection.WikiLookup
	collection.LinkSource
}

// Server wires the HTTP API.
type Server struct {
	cfg       *config.Config
	manager   *collection.Manager
	suggester *collection.Suggester
	mediator  *rendering.Mediator
	wiki      WikiService
	log       *slog.Logger
	router    chi.Router
}

// New assembles the router.
func New(cfg *config.Config, manager *collection.Manager, suggester *collection.Suggester, mediator *rendering.Mediator, wiki WikiService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		manager:   manager,
		suggester: suggester,
		mediator:  mediator,
		wiki:      wiki,
		log:       log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if s.cfg.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.cfg.Server.RateLimit, time.Minute))
	}
	r.Use(s.withSession)

	r.Route("/collection", func(r chi.Router) {
		r.Get("/", s.handleGetCollection)
		r.Post("/clear", s.handleClear)
		r.Post("/disable", s.handleDisable)
		r.Post("/titles", s.handleSetTitles)
		r.Post("/settings", s.handleSetSettings)
		r.Post("/sort", s.handleSortItems)
		r.Post("/reorder", s.handleSetSorting)
		r.Post("/load", s.handleLoadBookPage)
		r.Get("/export", s.handleExportBookPage)

		r.Post("/articles", s.handleAddArticle)
		r.Delete("/articles", s.handleRemoveArticle)
		r.Post("/categories", s.handleAddCategory)
		r.Post("/chapters", s.handleAddChapter)
		r.Post("/chapters/{index}/rename", s.handleRenameChapter)
		r.Post("/items/{index}/move", s.handleMoveItem)
		r.Delete("/items/{index}", s.handleRemoveItem)

		r.Get("/suggestions", s.handleSuggestions)
		r.Post("/suggestions/ban", s.handleBan)
		r.Post("/suggestions/unban", s.handleUnban)
	})

	r.Route("/render", func(r chi.Router) {
		r.Post("/", s.handleRender)
		r.Post("/article", s.handleRenderArticle)
		r.Post("/force", s.handleForceRender)
		r.Get("/status", s.handleRenderStatus)
		r.Get("/download", s.handleDownload)
		r.Post("/zip", s.handlePostZip)
	})

	r.Route("/book", func(r chi.Router) {
		r.Get("/", s.handleBookHTML)
		r.Get("/outline", s.handleBookOutline)
		r.Get("/cached", s.handleBookCached)
		r.Delete("/cache", s.handleBookCacheClear)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server on the configured address.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening", "addr", s.cfg.Server.Addr)
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

type sessionKeyType struct{}

var sessionKey sessionKeyType

// withSession reads the session cookie, issuing one on first contact.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sid string
		if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
			sid = cookie.Value
		} else {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := contextWithSession(r.Context(), sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
