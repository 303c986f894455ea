package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
	"github.com/JakeFAU/distro-catalog-crawler/internal/metrics"
	"github.com/JakeFAU/distro-catalog-crawler/internal/runner"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Trigger starts runs and reports their state.
type Trigger interface {
	StartRun(limit int, force bool) runner.TriggerResult
	State() runner.State
	Status(ctx context.Context) (catalog.Status, error)
}

// SnapshotReader reads and clears the stored snapshot.
type SnapshotReader interface {
	Load(ctx context.Context) (catalog.Snapshot, error)
	Clear(ctx context.Context) error
}

// ReadyCheck reports whether a downstream dependency is usable.
type ReadyCheck func(ctx context.Context) error

// Options tune handler defaults.
type Options struct {
	TriggerLimit   int
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the runner and snapshot store.
type Server struct {
	router  chi.Router
	trigger Trigger
	store   SnapshotReader
	opts    Options
	checks  []ReadyCheck
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(trigger Trigger, store SnapshotReader, opts Options, logger *zap.Logger, checks ...ReadyCheck) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TriggerLimit <= 0 {
		opts.TriggerLimit = 230
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		trigger: trigger,
		store:   store,
		opts:    opts,
		checks:  checks,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1/scraping", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/data", s.getData)
		r.Post("/trigger", s.postTrigger)
		r.Delete("/cache", s.deleteCache)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	for _, check := range s.checks {
		if err := check(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	catalog.Status
	Running bool               `json:"running"`
	LastRun *runner.RunSummary `json:"last_run,omitempty"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.trigger.Status(r.Context())
	if err != nil {
		s.logger.Error("status lookup failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "snapshot unreadable")
		return
	}
	state := s.trigger.State()
	s.writeJSON(w, http.StatusOK, statusResponse{Status: st, Running: state.Running, LastRun: state.LastRun})
}

type dataResponse struct {
	ScrapedAt time.Time                `json:"scraped_at"`
	Total     int                      `json:"total"`
	Skip      int                      `json:"skip"`
	Limit     int                      `json:"limit"`
	Records   []catalog.DistroRecord   `json:"distros"`
	Metadata  catalog.SnapshotMetadata `json:"metadata"`
}

func (s *Server) getData(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		s.writeError(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
		return
	}

	snap, err := s.store.Load(r.Context())
	if errors.Is(err, catalog.ErrNoSnapshot) {
		s.writeError(w, http.StatusNotFound, "no snapshot available")
		return
	}
	if err != nil {
		s.logger.Error("snapshot load failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "snapshot unreadable")
		return
	}

	start := min(skip, len(snap.Records))
	end := min(start+limit, len(snap.Records))
	s.writeJSON(w, http.StatusOK, dataResponse{
		ScrapedAt: snap.ScrapedAt,
		Total:     len(snap.Records),
		Skip:      skip,
		Limit:     limit,
		Records:   snap.Records[start:end],
		Metadata:  snap.Metadata,
	})
}

type triggerRequest struct {
	Limit *int  `json:"limit"`
	Force *bool `json:"force"`
}

func (s *Server) postTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	limit := valueOrDefault(req.Limit, s.opts.TriggerLimit)
	if limit < 1 {
		s.writeError(w, http.StatusBadRequest, "limit must be positive")
		return
	}
	res := s.trigger.StartRun(limit, valueOrDefault(req.Force, false))
	status := http.StatusOK
	if res.Status == runner.StatusStarted {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, res)
}

func (s *Server) deleteCache(w http.ResponseWriter, r *http.Request) {
	if s.trigger.State().Running {
		s.writeError(w, http.StatusConflict, catalog.ErrRunInProgress.Error())
		return
	}
	_, err := s.store.Load(r.Context())
	if errors.Is(err, catalog.ErrNoSnapshot) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "already_empty"})
		return
	}
	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("snapshot clear failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to clear snapshot")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.String("request_id", reqID),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
