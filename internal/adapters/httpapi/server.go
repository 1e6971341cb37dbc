// Package httpapi serves the backend query API from a local data source so
// the viewer can run against recorded or hand-written snapshots.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/logging"
	"servicegraph/internal/ports"
)

// maxBody caps request bodies
const maxBody = 1 << 20

type healthResp struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

type errorResp struct {
	Error string `json:"error"`
}

// Server exposes a ports.DataSource over HTTP
type Server struct {
	source   ports.DataSource
	registry *prometheus.Registry
	logger   *slog.Logger
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates a server over source. Metrics are registered on reg, which
// is also what /metrics serves.
func New(source ports.DataSource, reg *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		source:   source,
		registry: reg,
		logger:   logger,
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "servicegraph_http_requests_total",
			Help: "Requests served by the fixture backend.",
		}, []string{"route", "code"}),
		latency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "servicegraph_http_request_duration_seconds",
			Help:    "Request latency of the fixture backend.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Router builds the chi router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResp{OK: true, Service: "servicegraph"})
	})
	r.Post("/query", s.handleQuery)
	r.Post("/histogram", s.handleHistogram)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	p, err := s.source.FetchGraph(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	h, err := s.source.FetchHistogram(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (domain.Query, bool) {
	var q domain.Query
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid query: " + err.Error()})
		return q, false
	}
	if err := application.ValidateQuery(q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return q, false
	}
	return q, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, application.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, application.ErrInvalidQuery):
		status = http.StatusBadRequest
	}
	s.logger.Warn("request failed",
		"path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	writeJSON(w, status, errorResp{Error: err.Error()})
}

// observe logs and counts every request
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := logging.WithLogger(r.Context(), s.logger.With("request_id", middleware.GetReqID(r.Context())))

		next.ServeHTTP(ww, r.WithContext(ctx))

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.requests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		s.latency.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Debug("request", "method", r.Method, "route", route, "status", ww.Status(), "elapsed", elapsed)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
