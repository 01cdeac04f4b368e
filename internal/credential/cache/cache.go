// Package cache stores platform credentials with per-key expiry.
package cache

import (
	"context"
	"errors"
	"time"
)

// Kind names a credential type.
type Kind string

const (
	KindComponentToken Kind = "component_access_token"
	KindVerifyTicket   Kind = "component_verify_ticket"
	KindAccessToken    Kind = "access_token"
	KindJSAPITicket    Kind = "jsapi_ticket"
	KindCardTicket     Kind = "card_api_ticket"
)

// RefreshAheadMargin is subtracted from the platform-reported lifetime so a
// credential is renewed before the platform expires it.
const RefreshAheadMargin = 600 * time.Second

// ErrNonPositiveTTL is returned by Set for a ttl that would never expire.
var ErrNonPositiveTTL = errors.New("cache ttl must be positive")

// Key addresses one cached credential.
type Key struct {
	Scope string
	Kind  Kind
}

// ComponentKey is scoped to this service's component app id.
func ComponentKey(componentAppID string, kind Kind) Key {
	return Key{Scope: "component:" + componentAppID, Kind: kind}
}

// AuthorizerKey is scoped to one authorizer.
func AuthorizerKey(appID string, kind Kind) Key {
	return Key{Scope: "authorizer:" + appID, Kind: kind}
}

func (k Key) String() string {
	return k.Scope + ":" + string(k.Kind)
}

// Cache is a TTL key-value store. Get never returns an expired value.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key Key) (string, bool, error)
	// Set overwrites key. ttl must be positive.
	Set(ctx context.Context, key Key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key Key) error
}

// RefreshAheadTTL converts a platform expires_in (seconds) into the cache
// lifetime: expires_in minus RefreshAheadMargin, floored at zero. A zero
// result means the value must not be cached.
func RefreshAheadTTL(expiresIn int64) time.Duration {
	ttl := time.Duration(expiresIn)*time.Second - RefreshAheadMargin
	if ttl < 0 {
		return 0
	}
	return ttl
}
