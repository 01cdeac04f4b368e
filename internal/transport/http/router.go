package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credgate/internal/credential/handler"
	"credgate/internal/platform/health"
	"credgate/internal/platform/metrics"
	"credgate/internal/platform/middleware"
	"credgate/internal/session"
)

// RequestTimeout bounds every request, including platform round trips made on its behalf.
const RequestTimeout = 30 * time.Second

// AdminTokenHeader is accepted as an alternative to "Authorization: Bearer".
const AdminTokenHeader = "X-Admin-Token"

// Router groups the handlers served by the HTTP listener.
type Router struct {
	Credentials *handler.Handler
	Health      *health.Handler
	Sessions    middleware.SessionValidator
	Metrics     *metrics.Metrics
	// MetricsHandler serves /metrics. Defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(rt Router, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	if rt.Metrics != nil {
		r.Use(rt.Metrics.Middleware)
	}
	r.Use(chimiddleware.Timeout(RequestTimeout))
	r.Use(middleware.ContentTypeJSON)

	if rt.Health != nil {
		rt.Health.Register(r)
	}
	metricsHandler := rt.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	rt.Credentials.RegisterPlatform(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(rt.Sessions, session.RoleAdmin, middleware.BearerOrHeader(AdminTokenHeader), logger))
		rt.Credentials.RegisterAdmin(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(rt.Sessions, session.RoleUser, middleware.Cookie(session.UserCookieName), logger))
		rt.Credentials.RegisterH5(r)
	})

	return r
}
