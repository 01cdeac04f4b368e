// Package handler exposes the credential broker over HTTP: relayed platform
// notifications, operator endpoints and the H5 JS-SDK config.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credgate/internal/authorizer/models"
	"credgate/internal/credential/cache"
	"credgate/internal/jssdk"
	"credgate/internal/platform/metrics"
	"credgate/internal/platform/middleware"
	id "credgate/pkg/domain"
	dErrors "credgate/pkg/domain-errors"
	"credgate/pkg/platform/audit"
)

// Credentials is the broker surface used by the handlers.
type Credentials interface {
	SaveVerifyTicket(ctx context.Context, ticket string) error
	CompleteAuthorization(ctx context.Context, authCode string) (id.AppID, bool)
	Revoke(ctx context.Context, appID id.AppID) error
	RefreshProfile(ctx context.Context, appID id.AppID) (updated, ok bool)
	Invalidate(ctx context.Context, appID id.AppID, kind cache.Kind) error
}

// AuthorizerReader reads authorizer records for the operator views.
type AuthorizerReader interface {
	FindByAppID(ctx context.Context, appID id.AppID) (*models.Authorizer, error)
	List(ctx context.Context) ([]*models.Authorizer, error)
}

// CardParams builds signed card JS parameter sets.
type CardParams interface {
	AddCardParams(ctx context.Context, appID id.AppID, cardID, code, openID string) (map[string]string, bool)
	ChooseCardParams(ctx context.Context, appID id.AppID, shopID, cardType, cardID string) (map[string]string, bool)
}

// JSSDKConfigurer builds wx.config payloads.
type JSSDKConfigurer interface {
	Config(ctx context.Context, appID id.AppID, pageURL string) (jssdk.Config, bool)
}

// AuditTrail reads recent audit events.
type AuditTrail interface {
	Recent(ctx context.Context, limit int) []audit.Event
	ListByAppID(ctx context.Context, appID string) []audit.Event
}

// SessionRevoker revokes every session a subject holds under a role.
type SessionRevoker interface {
	RevokeSubject(ctx context.Context, role, subject string) error
}

// CircuitResetter closes the platform circuit breaker on operator request.
type CircuitResetter interface {
	ResetBreaker(ctx context.Context)
}

// Handler serves the credential endpoints. Optional collaborators that are
// not configured leave their routes unregistered.
type Handler struct {
	credentials Credentials
	authorizers AuthorizerReader
	cards       CardParams
	jssdk       JSSDKConfigurer
	trail       AuditTrail
	sessions    SessionRevoker
	circuit     CircuitResetter
	auditLogger *audit.Logger
	metrics     *metrics.Metrics
	eventsToken string
	logger      *slog.Logger
}

type Option func(*Handler)

func WithCardParams(c CardParams) Option {
	return func(h *Handler) {
		h.cards = c
	}
}

func WithJSSDK(j JSSDKConfigurer) Option {
	return func(h *Handler) {
		h.jssdk = j
	}
}

func WithAuditTrail(t AuditTrail) Option {
	return func(h *Handler) {
		h.trail = t
	}
}

func WithSessionRevoker(s SessionRevoker) Option {
	return func(h *Handler) {
		h.sessions = s
	}
}

func WithCircuitResetter(c CircuitResetter) Option {
	return func(h *Handler) {
		h.circuit = c
	}
}

func WithAuditLogger(l *audit.Logger) Option {
	return func(h *Handler) {
		h.auditLogger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithEventsToken requires relayed notifications to carry token in X-Events-Token.
func WithEventsToken(token string) Option {
	return func(h *Handler) {
		h.eventsToken = token
	}
}

func New(credentials Credentials, authorizers AuthorizerReader, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		credentials: credentials,
		authorizers: authorizers,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterPlatform mounts the notification endpoint. It is not session protected.
func (h *Handler) RegisterPlatform(r chi.Router) {
	r.Post("/platform/events", h.HandlePlatformEvent)
}

// RegisterAdmin mounts operator routes. The caller applies the admin session middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/authorizers", h.HandleListAuthorizers)
	r.Get("/admin/authorizers/{appid}", h.HandleGetAuthorizer)
	r.Delete("/admin/authorizers/{appid}", h.HandleRevokeAuthorizer)
	r.Post("/admin/authorizers/{appid}/profile/sync", h.HandleSyncProfile)
	r.Post("/admin/credentials/invalidate", h.HandleInvalidate)
	if h.cards != nil {
		r.Post("/admin/authorizers/{appid}/cards/add-params", h.HandleAddCardParams)
		r.Post("/admin/authorizers/{appid}/cards/choose-params", h.HandleChooseCardParams)
	}
	if h.trail != nil {
		r.Get("/admin/audit", h.HandleAuditEvents)
	}
	if h.sessions != nil {
		r.Post("/admin/sessions/revoke", h.HandleRevokeSessions)
	}
	if h.circuit != nil {
		r.Post("/admin/platform/circuit/reset", h.HandleResetCircuit)
	}
}

// RegisterH5 mounts routes for H5 pages. The caller applies the user session middleware.
func (h *Handler) RegisterH5(r chi.Router) {
	if h.jssdk != nil {
		r.Get("/h5/jsapi-config", h.HandleJSAPIConfig)
	}
}

func (h *Handler) appIDParam(r *http.Request) (id.AppID, error) {
	appID, err := id.ParseAppID(chi.URLParam(r, "appid"))
	if err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid appid")
	}
	return appID, nil
}

func (h *Handler) logError(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err, "request_id", middleware.GetRequestID(ctx))
	h.logger.ErrorContext(ctx, msg, args...)
}
