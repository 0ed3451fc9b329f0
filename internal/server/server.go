// Package server exposes the result store over a read-only JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/store"
)

// Reader is the read side of the result store.
type Reader interface {
	ListFinancials(ctx context.Context, f store.FinancialFilter) ([]model.FinancialRecord, error)
	ListNotFound(ctx context.Context, f store.NotFoundFilter) ([]model.NotFoundRecord, error)
	Ping(ctx context.Context) error
}

// Options configures the HTTP server.
type Options struct {
	Port           int
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server serves the result API.
type Server struct {
	reader Reader
	opts   Options
	log    *zap.Logger
}

// New creates a Server over reader.
func New(reader Reader, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{
		reader: reader,
		opts:   opts,
		log:    zap.L().With(zap.String("component", "server")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/financials", s.handleFinancials)
	r.Get("/not-found", s.handleNotFound)
	r.Get("/companies/{reg}/financials", s.handleCompanyFinancials)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck,gosec
	}()

	s.log.Info("starting server", zap.Int("port", s.opts.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.reader.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFinancials(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	reg := q.Get("reg")
	if reg != "" && !model.ValidRegNumber(reg) {
		writeError(w, http.StatusBadRequest, "invalid registration number")
		return
	}
	s.listFinancials(w, r, store.FinancialFilter{Company: q.Get("company"), RegNumber: reg, Limit: limit})
}

func (s *Server) handleCompanyFinancials(w http.ResponseWriter, r *http.Request) {
	reg := chi.URLParam(r, "reg")
	if !model.ValidRegNumber(reg) {
		writeError(w, http.StatusBadRequest, "invalid registration number")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	s.listFinancials(w, r, store.FinancialFilter{RegNumber: reg, Limit: limit})
}

func (s *Server) listFinancials(w http.ResponseWriter, r *http.Request, f store.FinancialFilter) {
	recs, err := s.reader.ListFinancials(r.Context(), f)
	if err != nil {
		s.log.Error("list financials failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if recs == nil {
		recs = []model.FinancialRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(recs), "records": recs})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	recs, err := s.reader.ListNotFound(r.Context(), store.NotFoundFilter{Reason: r.URL.Query().Get("reason"), Limit: limit})
	if err != nil {
		s.log.Error("list not found failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if recs == nil {
		recs = []model.NotFoundRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(recs), "records": recs})
}

// parseLimit reads ?limit=; an absent value means the store default.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck,gosec
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
