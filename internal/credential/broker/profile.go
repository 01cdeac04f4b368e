package broker

import (
	"context"
	"errors"
	"strings"

	"credgate/internal/authorizer/models"
	"credgate/internal/credential/cache"
	credmetrics "credgate/internal/credential/metrics"
	"credgate/internal/openplatform"
	id "credgate/pkg/domain"
	"credgate/pkg/platform/audit"
	"credgate/pkg/platform/sentinel"
	"credgate/pkg/platform/tracer"
)

// RefreshProfile pulls the authorizer's profile and granted scopes from the
// platform and stores them. The record is written only when something
// differs. ok is false when the sync could not be completed.
func (b *Broker) RefreshProfile(ctx context.Context, appID id.AppID) (updated, ok bool) {
	ctx, sp := b.tracer.Start(ctx, tracer.SpanProfileSync, tracer.String(tracer.AttrAppID, appID.String()))
	var spanErr error
	defer func() { sp.End(spanErr) }()
	ctx = withSpan(ctx, sp)

	updated, err := b.refreshProfile(ctx, appID)
	if err != nil {
		spanErr = err
		outcome := failureOutcome(err)
		sp.SetAttributes(tracer.String(tracer.AttrFailureCategory, outcome))
		b.incrementProfileSync(credmetrics.ProfileFailed)
		b.logger.WarnContext(ctx, "profile sync failed",
			"appid", appID.String(),
			"category", outcome,
			"error", err,
		)
		return false, false
	}
	if updated {
		b.incrementProfileSync(credmetrics.ProfileUpdated)
	} else {
		b.incrementProfileSync(credmetrics.ProfileUnchanged)
	}
	return updated, true
}

func (b *Broker) refreshProfile(ctx context.Context, appID id.AppID) (bool, error) {
	componentToken, ok := b.ComponentToken(ctx)
	if !ok {
		return false, unavailable("component token unavailable")
	}
	info, err := b.platform.FetchAuthorizerInfo(ctx, componentToken, appID.String())
	if err != nil {
		if openplatform.IsInvalidCredential(err) {
			b.evict(ctx, b.componentKey(cache.KindComponentToken), err)
		}
		return false, err
	}

	profile := profileFromInfo(info.Authorizer)
	scopes := info.Authorization.FuncScopes()

	var changes models.Changes
	err = b.records.WithLock(appID.String(), func() error {
		current, err := b.store.FindByAppID(ctx, appID)
		if err != nil {
			return err
		}
		var changed bool
		changes, changed = current.ApplyProfile(profile, scopes)
		if !changed {
			return nil
		}
		return b.store.Update(ctx, appID, changes, b.now())
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, unavailable("authorizer not found")
		}
		return false, err
	}
	if changes.IsEmpty() {
		return false, nil
	}
	b.audit.Log(ctx, audit.EventProfileSynced,
		"appid", appID.String(),
		"fields", strings.Join(changes.Fields(), ","),
	)
	return true, nil
}

func (b *Broker) incrementProfileSync(result string) {
	if b.metrics != nil {
		b.metrics.IncrementProfileSync(result)
	}
}

// profileFromInfo maps the platform's authorizer_info. Strings are trimmed
// and omitted type ids stay nil.
func profileFromInfo(d *openplatform.AuthorizerDetails) models.Profile {
	p := models.Profile{Version: models.ProfileVersion}
	if d == nil {
		return p
	}
	p.NickName = strings.TrimSpace(d.NickName)
	p.HeadImage = strings.TrimSpace(d.HeadImg)
	p.UserName = strings.TrimSpace(d.UserName)
	p.PrincipalName = strings.TrimSpace(d.PrincipalName)
	p.Alias = strings.TrimSpace(d.Alias)
	p.QRCodeURL = strings.TrimSpace(d.QRCodeURL)
	p.Signature = strings.TrimSpace(d.Signature)
	if d.ServiceTypeInfo != nil {
		v := d.ServiceTypeInfo.ID
		p.ServiceTypeID = &v
	}
	if d.VerifyTypeInfo != nil {
		v := d.VerifyTypeInfo.ID
		p.VerifyTypeID = &v
	}
	if len(d.BusinessInfo) > 0 {
		p.BusinessInfo = make(map[string]int, len(d.BusinessInfo))
		for k, v := range d.BusinessInfo {
			p.BusinessInfo[k] = v
		}
	}
	p.MiniProgramInfo = models.CanonicalJSON(d.MiniProgramInfo)
	return p
}
