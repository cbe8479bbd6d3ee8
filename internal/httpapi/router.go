package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refiler/pkg/platform/httputil"
	"refiler/pkg/platform/middleware/auth"
)

// HealthCheck reports the readiness of one dependency.
type HealthCheck func(ctx context.Context) error

// NewRouter assembles the full HTTP surface: authenticated filing routes plus
// the unauthenticated operational endpoints.
func NewRouter(h *Handler, validator auth.TokenValidator, logger *slog.Logger, checks map[string]HealthCheck) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(3 * time.Minute))

	r.Get("/healthz", handleHealthz(checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(validator, logger))
		h.Register(r)
	})

	return r
}

func handleHealthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
