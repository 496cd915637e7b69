package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/shannon/internal/api"
	apiMiddleware "github.com/phrazzld/shannon/internal/api/middleware"
	"github.com/phrazzld/shannon/internal/api/shared"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// requestTimeout bounds every API request except the long-poll endpoint,
// which has its own limit.
const requestTimeout = 60 * time.Second

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.Trace(app.logger))
	r.Use(middleware.Recoverer)

	handler := api.NewMessageHandler(app.memoryService)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Get("/health", app.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Post("/messages", handler.HandleMessage)
			r.Post("/sync/gmail", handler.SyncGmail)
			r.Get("/tasks/{id}", handler.GetTask)
			r.Get("/memory/stats", handler.GetMemoryStats)
		})

		r.Get("/tasks/{id}/wait", handler.WaitTask)
	})

	return r
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// handleHealth reports liveness and, when configured, database reachability.
func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	if app.db == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Database: "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		app.logger.Warn("health check failed", "error", err)
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Database: "unreachable"})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
}
