// Package tracer provides a small tracing abstraction over OpenTelemetry.
//
// Services depend on the Tracer interface only. OTelTracer is wired in
// production and NoopTracer in tests.
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := t.Start(ctx, tracer.SpanAccessToken,
//	    tracer.String(tracer.AttrAppID, appID),
//	)
//	defer span.End(nil)
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Fingerprint returns a short SHA-256 prefix of a secret value so spans and
// logs can correlate credentials without carrying them.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(hash[:8])
}

// Span names.
const (
	SpanComponentToken = "credential.component_token"
	SpanAccessToken    = "credential.access_token"
	SpanDerivedTicket  = "credential.ticket"
	SpanProfileSync    = "credential.profile_sync"
	SpanAuthorization  = "credential.authorization"
	SpanPlatformCall   = "openplatform.call"
)

// Attribute keys.
const (
	AttrAppID            = "authorizer.appid"
	AttrCredentialKind   = "credential.kind"
	AttrCacheHit         = "cache.hit"
	AttrTTLSeconds       = "cache.ttl_seconds"
	AttrFailureCategory  = "failure.category"
	AttrEndpoint         = "openplatform.endpoint"
	AttrTokenFingerprint = "credential.fingerprint"
)

// Event names.
const (
	EventRefreshTokenRotated = "refresh_token.rotated"
	EventCredentialEvicted   = "credential.evicted"
)
