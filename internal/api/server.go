// Package api exposes the forecast catalog over HTTP: available forecast
// dates and initialization times per source, the configured region set, and
// the usual health, readiness, and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// Catalog answers availability queries against the canonical store.
type Catalog interface {
	ForecastDates(source domain.Source, region string, strict bool) ([]string, error)
	InitTimes(source domain.Source, region, dateKey string) ([]string, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the catalog plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router. The catalog handlers live under /api/v1.
func NewServer(addr string, catalog Catalog, ready ReadinessChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/regions", handleRegions)
		r.Get("/forecasts/{source}/dates", handleDates(catalog))
		r.Get("/forecasts/{source}/{date}/times", handleInitTimes(catalog))
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type regionResponse struct {
	Name   string     `json:"name"`
	Code   string     `json:"code"`
	Extent [4]float64 `json:"extent"`
}

func handleRegions(w http.ResponseWriter, _ *http.Request) {
	regions := make([]regionResponse, 0, len(domain.DefaultRegions))
	for _, reg := range domain.DefaultRegions {
		regions = append(regions, regionResponse{Name: reg.Name, Code: reg.Code(), Extent: reg.Extent})
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": regions})
}

func handleDates(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source, region, ok := sourceAndRegion(w, r)
		if !ok {
			return
		}
		strict := r.URL.Query().Get("strict") == "true"

		dates, err := catalog.ForecastDates(source, region, strict)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"source": source,
			"region": region,
			"dates":  dates,
		})
	}
}

func handleInitTimes(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source, region, ok := sourceAndRegion(w, r)
		if !ok {
			return
		}
		date := chi.URLParam(r, "date")
		if _, err := time.ParseInLocation("20060102", date, time.UTC); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be formatted YYYYMMDD"})
			return
		}

		times, err := catalog.InitTimes(source, region, date)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if times == nil {
			times = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"source": source,
			"region": region,
			"date":   date,
			"times":  times,
		})
	}
}

// sourceAndRegion validates the {source} path segment and the optional
// region query parameter. The jobs staging category is not queryable.
func sourceAndRegion(w http.ResponseWriter, r *http.Request) (domain.Source, string, bool) {
	source, err := domain.ParseSource(chi.URLParam(r, "source"))
	if err != nil || source == domain.SourceJobs {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown data source"})
		return "", "", false
	}
	region := r.URL.Query().Get("region")
	if region != "" {
		if _, found := domain.FindRegion(region); !found {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown region"})
			return "", "", false
		}
	}
	return source, region, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort JSON response
}
