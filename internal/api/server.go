package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/macrofeed/series-crawler/internal/catalog"
	"github.com/macrofeed/series-crawler/internal/config"
	"github.com/macrofeed/series-crawler/internal/metrics"
	"github.com/macrofeed/series-crawler/internal/scheduler"
	"github.com/macrofeed/series-crawler/internal/tracker"
)

const statsTimeout = 3 * time.Second

// Server wires HTTP handlers to the scheduler and attempt tracker.
type Server struct {
	router  chi.Router
	sched   *scheduler.Scheduler
	tracker *tracker.Tracker
	catalog *catalog.Catalog
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	sched *scheduler.Scheduler,
	trk *tracker.Tracker,
	cat *catalog.Catalog,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sched:   sched,
		tracker: trk,
		catalog: cat,
		cfg:     cfg,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/stats", s.getStats)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Get("/failed", s.listFailedJobs)
		})
		r.Route("/series/{series_id}", func(r chi.Router) {
			r.Get("/stats", s.getSeriesStats)
			r.Post("/crawl", s.triggerCrawl)
			r.Post("/reset", s.resetFailed)
		})
		r.Route("/sources/{source}", func(r chi.Router) {
			r.Post("/pause", s.pauseSource)
			r.Post("/resume", s.resumeSource)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stats": s.sched.GetStats()}, s.logger)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	if p := r.URL.Query().Get("priority"); p != "" {
		priority, err := strconv.Atoi(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid priority", s.logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": s.sched.JobsByPriority(priority)}, s.logger)
		return
	}
	if c := r.URL.Query().Get("category"); c != "" {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": s.sched.JobsByCategory(catalog.Category(c))}, s.logger)
		return
	}
	writeError(w, http.StatusBadRequest, "priority or category query parameter required", s.logger)
}

func (s *Server) listFailedJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"failed": s.sched.GetFailedJobs()}, s.logger)
}

func (s *Server) getSeriesStats(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "series_id")
	if _, ok := s.catalog.ByID(seriesID); !ok {
		writeError(w, http.StatusNotFound, "series not found", s.logger)
		return
	}

	windowDays := tracker.DefaultWindowDays
	if q := r.URL.Query().Get("window_days"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid window_days", s.logger)
			return
		}
		windowDays = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsTimeout)
	defer cancel()

	stats, err := s.tracker.Statistics(ctx, seriesID, windowDays)
	if err != nil {
		s.logger.Error("series statistics failed",
			zap.String("series_id", seriesID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute statistics", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statistics": stats}, s.logger)
}

func (s *Server) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "series_id")
	if err := s.sched.TriggerManualCrawl(seriesID); err != nil {
		writeError(w, http.StatusConflict, err.Error(), s.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"series_id": seriesID, "status": "scheduled"}, s.logger)
}

func (s *Server) resetFailed(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "series_id")
	if err := s.sched.ResetFailedJob(seriesID); err != nil {
		writeError(w, http.StatusConflict, err.Error(), s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"series_id": seriesID, "status": "pending"}, s.logger)
}

func (s *Server) pauseSource(w http.ResponseWriter, r *http.Request) {
	src, ok := s.parseSource(w, r)
	if !ok {
		return
	}
	s.sched.PauseSource(src)
	writeJSON(w, http.StatusOK, map[string]string{"source": string(src), "status": "paused"}, s.logger)
}

func (s *Server) resumeSource(w http.ResponseWriter, r *http.Request) {
	src, ok := s.parseSource(w, r)
	if !ok {
		return
	}
	s.sched.ResumeSource(src)
	writeJSON(w, http.StatusOK, map[string]string{"source": string(src), "status": "resumed"}, s.logger)
}

func (s *Server) parseSource(w http.ResponseWriter, r *http.Request) (catalog.Source, bool) {
	src := catalog.Source(chi.URLParam(r, "source"))
	if len(s.catalog.BySource(src)) == 0 {
		writeError(w, http.StatusNotFound, "unknown source", s.logger)
		return "", false
	}
	return src, true
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error", logger)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
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

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
