package session

import "errors"

var (
	// ErrDecode reports a token that is malformed, truncated or was not sealed with this key.
	ErrDecode = errors.New("session token decode failed")
	// ErrInvalidToken reports a token that must be rejected: undecodable,
	// expired, malformed fields, wrong role or revoked.
	ErrInvalidToken = errors.New("invalid session token")
)
