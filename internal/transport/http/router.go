// Package httptransport composes the session agent's HTTP surface.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	identityhandler "peoplehub/internal/identity/handler"
	"peoplehub/internal/platform/metrics"
	sessionhandler "peoplehub/internal/session/handler"
	"peoplehub/pkg/platform/httputil"
	"peoplehub/pkg/platform/middleware/admin"
	"peoplehub/pkg/platform/middleware/request"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency for GET /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Session    *sessionhandler.Handler
	Identity   *identityhandler.Handler
	Metrics    *metrics.Metrics
	AdminToken string
	Health     []HealthCheck
	Logger     *slog.Logger
}

// NewRouter mounts the session API, the admin API behind the admin token, and
// the operational endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(request.RequestID)
	r.Use(request.Time)
	r.Use(request.ClientMetadata)
	if d.Metrics != nil {
		r.Use(d.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/healthz", healthHandler(d.Health))

	if d.Session != nil {
		d.Session.Register(r)
	}
	if d.Identity != nil {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(d.AdminToken, d.Logger))
			d.Identity.RegisterAdmin(r)
		})
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
