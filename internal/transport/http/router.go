// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	personhandler "lineage/internal/person/handler"
	"lineage/internal/platform/middleware"
	relationshiphandler "lineage/internal/relationship/handler"
	treehandler "lineage/internal/tree/handler"
)

// Deps carries everything the router needs. Handlers stay thin; all business
// logic lives behind the domain services.
type Deps struct {
	Logger        *slog.Logger
	Verifier      *middleware.AccessVerifier
	Persons       *personhandler.Handler
	Relationships *relationshiphandler.Handler
	Trees         *treehandler.Handler
	Health        func() error
}

// NewRouter wires all public endpoints. Every chart-scoped route sits behind
// the gateway access assertion; health and metrics are unauthenticated.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/charts/{chartID}", func(chart chi.Router) {
		chart.Use(middleware.ContentTypeJSON)
		chart.Use(middleware.RequireChartAccess(deps.Verifier, deps.Logger))
		deps.Persons.Register(chart)
		deps.Relationships.Register(chart)
		deps.Trees.Register(chart)
	})

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
