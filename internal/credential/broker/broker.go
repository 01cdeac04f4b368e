// Package broker hands out platform credentials. Each getter serves from the
// cache when it can and otherwise walks the fetch chain (verify ticket,
// component token, authorizer access token, derived ticket), caching every
// result for its lifetime minus the refresh-ahead margin.
//
// Getters never return fetch errors. A false ok means the credential is
// unavailable right now and the caller should try again later; the reason
// is logged.
package broker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"credgate/internal/authorizer/models"
	"credgate/internal/credential/cache"
	credmetrics "credgate/internal/credential/metrics"
	"credgate/internal/openplatform"
	id "credgate/pkg/domain"
	"credgate/pkg/platform/audit"
	psync "credgate/pkg/platform/sync"
	"credgate/pkg/platform/tracer"
)

// VerifyTicketTTL bounds how long a pushed verify ticket is kept. The
// platform pushes a new one every ten minutes.
const VerifyTicketTTL = 12 * time.Hour

// PlatformClient is the subset of the open platform API the broker uses.
type PlatformClient interface {
	FetchComponentToken(ctx context.Context, verifyTicket string) (*openplatform.ComponentToken, error)
	FetchAuthorizerToken(ctx context.Context, componentToken, appID, refreshToken string) (*openplatform.AuthorizerToken, error)
	FetchTicket(ctx context.Context, accessToken string, kind openplatform.TicketKind) (*openplatform.Ticket, error)
	FetchAuthorizerInfo(ctx context.Context, componentToken, appID string) (*openplatform.AuthorizerInfo, error)
	QueryAuth(ctx context.Context, componentToken, authCode string) (*openplatform.AuthorizationInfo, error)
}

// AuthorizerStore persists authorizer records.
// Error Contract: FindByAppID and Update return sentinel.ErrNotFound for unknown appids,
// Create returns sentinel.ErrAlreadyUsed for a duplicate appid.
type AuthorizerStore interface {
	Create(ctx context.Context, a *models.Authorizer) error
	FindByAppID(ctx context.Context, appID id.AppID) (*models.Authorizer, error)
	Update(ctx context.Context, appID id.AppID, changes models.Changes, now time.Time) error
}

type Broker struct {
	platform       PlatformClient
	store          AuthorizerStore
	cache          cache.Cache
	componentAppID string

	flights singleflight.Group
	records *psync.ShardedMutex

	logger  *slog.Logger
	tracer  tracer.Tracer
	metrics *credmetrics.Metrics
	audit   *audit.Logger
	now     func() time.Time
}

type Option func(*Broker)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(b *Broker) {
		b.tracer = t
	}
}

func WithMetrics(m *credmetrics.Metrics) Option {
	return func(b *Broker) {
		b.metrics = m
	}
}

func WithAuditLogger(l *audit.Logger) Option {
	return func(b *Broker) {
		b.audit = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

// New creates a Broker for the given component app id.
func New(platform PlatformClient, store AuthorizerStore, c cache.Cache, componentAppID string, opts ...Option) *Broker {
	b := &Broker{
		platform:       platform,
		store:          store,
		cache:          c,
		componentAppID: componentAppID,
		records:        psync.NewShardedMutex(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.tracer == nil {
		b.tracer = tracer.NewNoop()
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

func (b *Broker) componentKey(kind cache.Kind) cache.Key {
	return cache.ComponentKey(b.componentAppID, kind)
}

func authorizerKey(appID id.AppID, kind cache.Kind) cache.Key {
	return cache.AuthorizerKey(appID.String(), kind)
}
