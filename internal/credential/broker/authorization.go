package broker

import (
	"context"
	"errors"
	"fmt"

	"credgate/internal/authorizer/models"
	"credgate/internal/credential/cache"
	"credgate/internal/openplatform"
	id "credgate/pkg/domain"
	dErrors "credgate/pkg/domain-errors"
	"credgate/pkg/platform/audit"
	"credgate/pkg/platform/sentinel"
	"credgate/pkg/platform/tracer"
)

var authorizerKinds = []cache.Kind{cache.KindAccessToken, cache.KindJSAPITicket, cache.KindCardTicket}

// SaveVerifyTicket stores the component verify ticket pushed by the platform.
func (b *Broker) SaveVerifyTicket(ctx context.Context, ticket string) error {
	if ticket == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "verify ticket is required")
	}
	if err := b.cache.Set(ctx, b.componentKey(cache.KindVerifyTicket), ticket, VerifyTicketTTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store verify ticket")
	}
	b.audit.Log(ctx, audit.EventVerifyTicketSaved, "fingerprint", tracer.Fingerprint(ticket))
	return nil
}

// Invalidate evicts one cached credential. Component kinds ignore appID.
func (b *Broker) Invalidate(ctx context.Context, appID id.AppID, kind cache.Kind) error {
	var key cache.Key
	switch kind {
	case cache.KindComponentToken, cache.KindVerifyTicket:
		key = b.componentKey(kind)
	case cache.KindAccessToken, cache.KindJSAPITicket, cache.KindCardTicket:
		if appID.IsNil() {
			return dErrors.New(dErrors.CodeInvalidInput, "appid is required")
		}
		key = authorizerKey(appID, kind)
	default:
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown credential kind %q", kind))
	}
	if err := b.cache.Delete(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to invalidate credential")
	}
	b.audit.Log(ctx, audit.EventCredentialInvalidated, "appid", appID.String(), "kind", string(kind))
	return nil
}

// CompleteAuthorization exchanges an authorization code for the authorizer's
// first token pair, creates or re-activates its record, seeds the access
// token cache and syncs the profile. ok is false when the exchange or the
// record write failed; a failed profile sync does not fail authorization.
func (b *Broker) CompleteAuthorization(ctx context.Context, authCode string) (id.AppID, bool) {
	ctx, sp := b.tracer.Start(ctx, tracer.SpanAuthorization)
	var spanErr error
	defer func() { sp.End(spanErr) }()
	ctx = withSpan(ctx, sp)

	appID, created, err := b.completeAuthorization(ctx, authCode)
	if err != nil {
		spanErr = err
		outcome := failureOutcome(err)
		sp.SetAttributes(tracer.String(tracer.AttrFailureCategory, outcome))
		b.logger.WarnContext(ctx, "authorization failed", "category", outcome, "error", err)
		return "", false
	}
	sp.SetAttributes(tracer.String(tracer.AttrAppID, appID.String()))
	b.audit.Log(ctx, audit.EventAuthorizationCompleted,
		"appid", appID.String(),
		"created", created,
	)

	if _, ok := b.RefreshProfile(ctx, appID); !ok {
		b.logger.WarnContext(ctx, "profile sync after authorization failed", "appid", appID.String())
	}
	return appID, true
}

func (b *Broker) completeAuthorization(ctx context.Context, authCode string) (id.AppID, bool, error) {
	if authCode == "" {
		return "", false, unavailable("authorization code is empty")
	}
	componentToken, ok := b.ComponentToken(ctx)
	if !ok {
		return "", false, unavailable("component token unavailable")
	}
	info, err := b.platform.QueryAuth(ctx, componentToken, authCode)
	if err != nil {
		if openplatform.IsInvalidCredential(err) {
			b.evict(ctx, b.componentKey(cache.KindComponentToken), err)
		}
		return "", false, err
	}
	appID, err := id.ParseAppID(info.AppID)
	if err != nil {
		return "", false, fmt.Errorf("platform returned unusable appid: %w", err)
	}

	var created bool
	err = b.records.WithLock(appID.String(), func() error {
		var err error
		created, err = b.upsertAuthorizer(ctx, appID, info)
		return err
	})
	if err != nil {
		return "", false, err
	}

	b.storeCredential(ctx, authorizerKey(appID, cache.KindAccessToken), info.AccessToken, info.ExpiresIn)
	return appID, created, nil
}

// upsertAuthorizer reuses the existing record on re-authorization. Callers
// hold the record lock.
func (b *Broker) upsertAuthorizer(ctx context.Context, appID id.AppID, info *openplatform.AuthorizationInfo) (bool, error) {
	scopes := info.FuncScopes()
	existing, err := b.store.FindByAppID(ctx, appID)
	if errors.Is(err, sentinel.ErrNotFound) {
		a, newErr := models.NewAuthorizer(appID, info.RefreshToken, scopes, b.now())
		if newErr != nil {
			return false, newErr
		}
		createErr := b.store.Create(ctx, a)
		if createErr == nil {
			return true, nil
		}
		if !errors.Is(createErr, sentinel.ErrAlreadyUsed) {
			return false, fmt.Errorf("create authorizer: %w", createErr)
		}
		// Another instance created it first.
		existing, err = b.store.FindByAppID(ctx, appID)
	}
	if err != nil {
		return false, fmt.Errorf("load authorizer: %w", err)
	}

	changes, changed := existing.Reauthorize(info.RefreshToken, scopes)
	if !changed {
		return false, nil
	}
	if err := b.store.Update(ctx, appID, changes, b.now()); err != nil {
		return false, fmt.Errorf("reauthorize: %w", err)
	}
	return false, nil
}

// Revoke handles a revocation notification: the record is marked
// unauthorized and every cached credential of the authorizer is evicted.
func (b *Broker) Revoke(ctx context.Context, appID id.AppID) error {
	err := b.records.WithLock(appID.String(), func() error {
		current, err := b.store.FindByAppID(ctx, appID)
		if err != nil {
			return err
		}
		changes, changed := current.MarkUnauthorized()
		if !changed {
			return nil
		}
		return b.store.Update(ctx, appID, changes, b.now())
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "authorizer not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke authorizer")
	}

	for _, kind := range authorizerKinds {
		if err := b.cache.Delete(ctx, authorizerKey(appID, kind)); err != nil {
			b.logger.WarnContext(ctx, "failed to evict credential of revoked authorizer",
				"appid", appID.String(),
				"kind", string(kind),
				"error", err,
			)
		}
	}
	b.audit.Log(ctx, audit.EventAuthorizationRevoked, "appid", appID.String())
	return nil
}
