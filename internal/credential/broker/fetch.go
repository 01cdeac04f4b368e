package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credgate/internal/credential/cache"
	credmetrics "credgate/internal/credential/metrics"
	"credgate/internal/openplatform"
	id "credgate/pkg/domain"
	"credgate/pkg/platform/audit"
	"credgate/pkg/platform/sentinel"
	"credgate/pkg/platform/tracer"
)

// fetchFunc produces a fresh credential and its platform lifetime in seconds.
type fetchFunc func(ctx context.Context) (value string, expiresIn int64, err error)

// ComponentToken returns the component access token.
func (b *Broker) ComponentToken(ctx context.Context) (string, bool) {
	key := b.componentKey(cache.KindComponentToken)
	return b.getOrFetch(ctx, tracer.SpanComponentToken, key, "", b.fetchComponentToken)
}

// AccessToken returns the access token of an authorizer.
func (b *Broker) AccessToken(ctx context.Context, appID id.AppID) (string, bool) {
	key := authorizerKey(appID, cache.KindAccessToken)
	return b.getOrFetch(ctx, tracer.SpanAccessToken, key, appID, func(ctx context.Context) (string, int64, error) {
		return b.fetchAccessToken(ctx, appID)
	})
}

// JSAPITicket returns the JS-SDK ticket of an authorizer.
func (b *Broker) JSAPITicket(ctx context.Context, appID id.AppID) (string, bool) {
	return b.DerivedTicket(ctx, appID, cache.KindJSAPITicket)
}

// CardTicket returns the card API ticket of an authorizer.
func (b *Broker) CardTicket(ctx context.Context, appID id.AppID) (string, bool) {
	return b.DerivedTicket(ctx, appID, cache.KindCardTicket)
}

// DerivedTicket returns a ticket derived from the authorizer's access token.
// kind must be cache.KindJSAPITicket or cache.KindCardTicket.
func (b *Broker) DerivedTicket(ctx context.Context, appID id.AppID, kind cache.Kind) (string, bool) {
	ticketKind, ok := ticketKinds[kind]
	if !ok {
		b.logger.ErrorContext(ctx, "unsupported derived ticket kind", "kind", kind)
		return "", false
	}
	key := authorizerKey(appID, kind)
	return b.getOrFetch(ctx, tracer.SpanDerivedTicket, key, appID, func(ctx context.Context) (string, int64, error) {
		return b.fetchTicket(ctx, appID, ticketKind)
	})
}

var ticketKinds = map[cache.Kind]openplatform.TicketKind{
	cache.KindJSAPITicket: openplatform.TicketJSAPI,
	cache.KindCardTicket:  openplatform.TicketCard,
}

// getOrFetch serves key from the cache, or runs fetch once per key across
// concurrent callers and caches the result.
func (b *Broker) getOrFetch(ctx context.Context, span string, key cache.Key, appID id.AppID, fetch fetchFunc) (value string, ok bool) {
	kind := string(key.Kind)
	ctx, sp := b.tracer.Start(ctx, span,
		tracer.String(tracer.AttrCredentialKind, kind),
		tracer.String(tracer.AttrAppID, appID.String()),
	)
	var spanErr error
	defer func() { sp.End(spanErr) }()
	ctx = withSpan(ctx, sp)

	if v, hit := b.lookup(ctx, key); hit {
		sp.SetAttributes(tracer.Bool(tracer.AttrCacheHit, true))
		if b.metrics != nil {
			b.metrics.IncrementCacheHit(kind)
		}
		return v, true
	}
	sp.SetAttributes(tracer.Bool(tracer.AttrCacheHit, false))
	if b.metrics != nil {
		b.metrics.IncrementCacheMiss(kind)
	}

	res, err, _ := b.flights.Do(key.String(), func() (any, error) {
		// The flight is shared; one caller's cancellation must not fail the others.
		fctx := context.WithoutCancel(ctx)
		if v, hit := b.lookup(fctx, key); hit {
			return v, nil
		}

		start := time.Now()
		v, expiresIn, err := fetch(fctx)
		if b.metrics != nil {
			b.metrics.ObserveFetch(kind, start)
		}
		if err != nil {
			return "", err
		}
		b.storeCredential(fctx, key, v, expiresIn)
		if b.metrics != nil {
			b.metrics.IncrementFetch(kind, credmetrics.OutcomeSuccess)
		}
		return v, nil
	})
	if err != nil {
		outcome := failureOutcome(err)
		spanErr = err
		sp.SetAttributes(tracer.String(tracer.AttrFailureCategory, outcome))
		if b.metrics != nil {
			b.metrics.IncrementFetch(kind, outcome)
		}
		b.logger.WarnContext(ctx, "credential unavailable",
			"kind", kind,
			"appid", appID.String(),
			"category", outcome,
			"error", err,
		)
		return "", false
	}
	return res.(string), true
}

// lookup treats a cache failure as a miss.
func (b *Broker) lookup(ctx context.Context, key cache.Key) (string, bool) {
	v, ok, err := b.cache.Get(ctx, key)
	if err != nil {
		b.logger.WarnContext(ctx, "credential cache read failed", "key", key.String(), "error", err)
		return "", false
	}
	return v, ok
}

// storeCredential caches value with the refresh-ahead lifetime. Values that
// would expire within the margin are not cached.
func (b *Broker) storeCredential(ctx context.Context, key cache.Key, value string, expiresIn int64) {
	ttl := cache.RefreshAheadTTL(expiresIn)
	if ttl <= 0 {
		b.logger.DebugContext(ctx, "credential lifetime within refresh margin, not caching",
			"key", key.String(),
			"expires_in", expiresIn,
		)
		return
	}
	spanFrom(ctx).SetAttributes(tracer.Int64(tracer.AttrTTLSeconds, int64(ttl.Seconds())))
	if err := b.cache.Set(ctx, key, value, ttl); err != nil {
		b.logger.WarnContext(ctx, "credential cache write failed", "key", key.String(), "error", err)
	}
}

// evict drops a credential the platform rejected so the next call refetches it.
func (b *Broker) evict(ctx context.Context, key cache.Key, reason error) {
	if err := b.cache.Delete(ctx, key); err != nil {
		b.logger.WarnContext(ctx, "credential eviction failed", "key", key.String(), "error", err)
		return
	}
	if b.metrics != nil {
		b.metrics.IncrementInvalidation(string(key.Kind))
	}
	spanFrom(ctx).AddEvent(tracer.EventCredentialEvicted, tracer.String(tracer.AttrCredentialKind, string(key.Kind)))
	b.logger.InfoContext(ctx, "evicted rejected credential", "key", key.String(), "reason", reason)
}

func (b *Broker) fetchComponentToken(ctx context.Context) (string, int64, error) {
	ticket, ok := b.lookup(ctx, b.componentKey(cache.KindVerifyTicket))
	if !ok {
		return "", 0, unavailable("no component verify ticket has been received")
	}
	tok, err := b.platform.FetchComponentToken(ctx, ticket)
	if err != nil {
		return "", 0, err
	}
	return tok.Token, tok.ExpiresIn, nil
}

func (b *Broker) fetchAccessToken(ctx context.Context, appID id.AppID) (string, int64, error) {
	auth, err := b.store.FindByAppID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", 0, unavailable("authorizer not found")
		}
		return "", 0, fmt.Errorf("load authorizer: %w", err)
	}
	if !auth.CanIssueTokens() {
		return "", 0, unavailable("authorizer is not authorized")
	}

	componentToken, ok := b.ComponentToken(ctx)
	if !ok {
		return "", 0, unavailable("component token unavailable")
	}

	tok, err := b.platform.FetchAuthorizerToken(ctx, componentToken, appID.String(), auth.RefreshToken)
	if err != nil {
		if openplatform.IsInvalidCredential(err) && !openplatform.IsRefreshTokenRejected(err) {
			b.evict(ctx, b.componentKey(cache.KindComponentToken), err)
		}
		return "", 0, err
	}

	b.rotateRefreshToken(ctx, appID, tok.RefreshToken)
	return tok.AccessToken, tok.ExpiresIn, nil
}

// rotateRefreshToken persists a refresh token the platform rotated. The
// access token is still handed out when the write fails.
func (b *Broker) rotateRefreshToken(ctx context.Context, appID id.AppID, token string) {
	err := b.records.WithLock(appID.String(), func() error {
		current, err := b.store.FindByAppID(ctx, appID)
		if err != nil {
			return err
		}
		changes, changed := current.RotateRefreshToken(token)
		if !changed {
			return nil
		}
		if err := b.store.Update(ctx, appID, changes, b.now()); err != nil {
			return err
		}
		if b.metrics != nil {
			b.metrics.IncrementRotation()
		}
		spanFrom(ctx).AddEvent(tracer.EventRefreshTokenRotated,
			tracer.String(tracer.AttrTokenFingerprint, tracer.Fingerprint(token)),
		)
		b.audit.Log(ctx, audit.EventRefreshTokenRotated,
			"appid", appID.String(),
			"fingerprint", tracer.Fingerprint(token),
		)
		return nil
	})
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to persist rotated refresh token",
			"appid", appID.String(),
			"error", err,
		)
	}
}

func (b *Broker) fetchTicket(ctx context.Context, appID id.AppID, kind openplatform.TicketKind) (string, int64, error) {
	accessToken, ok := b.AccessToken(ctx, appID)
	if !ok {
		return "", 0, unavailable("access token unavailable")
	}
	tk, err := b.platform.FetchTicket(ctx, accessToken, kind)
	if err != nil {
		if openplatform.IsInvalidCredential(err) {
			b.evict(ctx, authorizerKey(appID, cache.KindAccessToken), err)
		}
		return "", 0, err
	}
	return tk.Ticket, tk.ExpiresIn, nil
}
