package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orchestrahq/platform-api/internal/platform/httpx"
	workflowHandler "github.com/orchestrahq/platform-api/internal/workflows/handler"
)

func (api *api) routes(metricsHandler http.Handler) http.Handler {
	router := chi.NewRouter()

	// Panic recovery wraps everything below it
	router.Use(httpx.RecoverPanic(api.logger))

	// Inject request_id and per-request logger
	router.Use(httpx.RequestLoggerMiddleware(api.logger))

	// Inject system context
	router.Use(httpx.SystemContextMiddleware(api.config.env, version))

	router.Use(httpx.MetricsMiddleware)

	// --- Public / Ungrouped Routes ---
	router.Method(http.MethodGet, "/health/live", http.HandlerFunc(api.healthLive))
	router.Method(http.MethodGet, "/health/ready", http.HandlerFunc(api.healthReady))
	router.Method(http.MethodGet, "/metrics", metricsHandler)

	// --- V1 API Route Group ---
	router.Route("/v1", func(r chi.Router) {
		// --- Write Endpoint ---
		wh := workflowHandler.NewWorkflowCommandHandler(api.services.WorkflowService)
		r.Method(http.MethodPost, "/workflows", wh)

		// --- Read Endpoint ---
		wqh := workflowHandler.NewWorkflowQueryHandler(api.repositories.WorkflowQueryRepository)
		r.Method(http.MethodGet, "/workflows/{id}", wqh)
	})

	return router
}

func (api *api) healthLive(w http.ResponseWriter, r *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, httpx.Envelope{
		"status":  "ok",
		"version": version,
	}, nil)
}

func (api *api) healthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := api.db.Pool.PingContext(ctx); err != nil {
		httpx.ServiceUnavailable(w, r, err)
		return
	}

	_ = httpx.WriteJSON(w, http.StatusOK, httpx.Envelope{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version,
	}, nil)
}
