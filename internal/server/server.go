// Package server provides the HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bryan-buckman/techpulse/internal/database"
	"github.com/bryan-buckman/techpulse/internal/ingest"
	"github.com/bryan-buckman/techpulse/internal/model"
	"github.com/bryan-buckman/techpulse/internal/opml"
)

// maxOPMLBytes caps an uploaded OPML document.
const maxOPMLBytes = 5 << 20

// Runner executes one ingest cycle.
type Runner interface {
	Run(ctx context.Context, opts ingest.RunOptions) (*ingest.Summary, error)
}

// Server is the HTTP server.
type Server struct {
	db     database.Store
	runner Runner
	logger *slog.Logger
	router chi.Router
}

// New creates a server.
func New(db database.Store, runner Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{db: db, runner: runner, logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", s.handleSources)
		r.Get("/categories", s.handleCategories)
		r.Get("/articles", s.handleArticles)
		r.Post("/fetch", s.handleFetch)
		r.Post("/import-opml", s.handleImportOPML)
		r.Get("/export-opml", s.handleExportOPML)
	})

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is canceled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": s.db.DatabaseType(),
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	var f database.SourceFilter
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "Invalid active flag", http.StatusBadRequest)
			return
		}
		f.Active = &active
	}
	sources, err := s.db.ListSources(r.Context(), f)
	if err != nil {
		s.logger.Error("list sources failed", "error", err)
		http.Error(w, "Failed to list sources", http.StatusInternalServerError)
		return
	}
	if sources == nil {
		sources = []model.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.db.ListCategories(r.Context())
	if err != nil {
		s.logger.Error("list categories failed", "error", err)
		http.Error(w, "Failed to list categories", http.StatusInternalServerError)
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := database.ArticleFilter{Limit: 50}
	var err error
	if f.SourceID, err = optionalID(q.Get("source")); err != nil {
		http.Error(w, "Invalid source id", http.StatusBadRequest)
		return
	}
	if f.CategoryID, err = optionalID(q.Get("category")); err != nil {
		http.Error(w, "Invalid category id", http.StatusBadRequest)
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 || n > 500 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}
	articles, err := s.db.ListArticles(r.Context(), f)
	if err != nil {
		s.logger.Error("list articles failed", "error", err)
		http.Error(w, "Failed to list articles", http.StatusInternalServerError)
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var opts ingest.RunOptions
	id, err := optionalID(r.URL.Query().Get("source"))
	if err != nil {
		http.Error(w, "Invalid source id", http.StatusBadRequest)
		return
	}
	opts.SourceID = id

	sum, err := s.runner.Run(r.Context(), opts)
	if errors.Is(err, ingest.ErrStorageUnavailable) {
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		s.logger.Error("fetch run failed", "error", err)
		http.Error(w, "Fetch failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	res, err := opml.Import(r.Context(), s.db, http.MaxBytesReader(w, r.Body, maxOPMLBytes))
	if err != nil {
		http.Error(w, "Failed to parse OPML: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Info("opml imported", "added", res.Added, "existing", res.Existing, "failed", res.Failed)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	rssType := model.SourceRSS
	sources, err := s.db.ListSources(r.Context(), database.SourceFilter{Type: &rssType})
	if err != nil {
		s.logger.Error("list sources failed", "error", err)
		http.Error(w, "Failed to get sources", http.StatusInternalServerError)
		return
	}
	data, err := opml.Export("techpulse sources", sources)
	if err != nil {
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/x-opml")
	w.Header().Set("Content-Disposition", `attachment; filename="techpulse.opml"`)
	w.Write(data)
}

// --- Helpers ---

func optionalID(v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid id")
	}
	return &id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
