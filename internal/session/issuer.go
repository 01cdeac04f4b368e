package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Roles and their default lifetimes.
const (
	RoleAdmin = "admin"
	RoleUser  = "wx_user"

	AdminValidDays = 7
	UserValidDays  = 100

	// UserCookieName carries RoleUser tokens for H5 pages.
	UserCookieName = "wx_user"
)

const secondsPerDay = 86400

// ErrUnknownRole reports a role without a known lifetime.
var ErrUnknownRole = errors.New("unknown session role")

// ValidDays returns the lifetime tokens of role are issued with by default.
// It is also the longest lifetime Issue accepts for that role.
func ValidDays(role string) (int, bool) {
	switch role {
	case RoleAdmin:
		return AdminValidDays, true
	case RoleUser:
		return UserValidDays, true
	}
	return 0, false
}

// Issuer mints and validates session tokens with plaintext
// "role:subject:expiryEpochSeconds". Without a RevocationList it is fully
// stateless: a token stays valid for its whole lifetime.
type Issuer struct {
	codec       *Codec
	revocations RevocationList
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithRevocationList enables early revocation per role and subject.
func WithRevocationList(list RevocationList) Option {
	return func(i *Issuer) {
		i.revocations = list
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func NewIssuer(codec *Codec, opts ...Option) *Issuer {
	i := &Issuer{
		codec:  codec,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a token for subject under role, expiring validDays from now.
func (i *Issuer) Issue(subject, role string, validDays int) (string, error) {
	if subject == "" || strings.Contains(subject, ":") {
		return "", errors.New("subject must be non-empty and must not contain ':'")
	}
	if role == "" || strings.Contains(role, ":") {
		return "", errors.New("role must be non-empty and must not contain ':'")
	}
	if validDays <= 0 {
		return "", errors.New("validDays must be positive")
	}
	if limit, ok := ValidDays(role); ok && validDays > limit {
		return "", fmt.Errorf("validDays must not exceed %d for role %s", limit, role)
	}
	now := i.now()
	expiry := now.Unix() + int64(validDays)*secondsPerDay
	return i.codec.EncryptAt(role+":"+subject+":"+strconv.FormatInt(expiry, 10), now)
}

// Validate returns the subject of token if it decodes, carries role, has not
// expired and has not been revoked. Every failure wraps ErrInvalidToken; decode
// failures additionally wrap ErrDecode.
func (i *Issuer) Validate(ctx context.Context, token, role string) (string, error) {
	plaintext, issuedAt, err := i.codec.Open(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	fields := strings.Split(plaintext, ":")
	if len(fields) != 3 {
		return "", fmt.Errorf("%w: malformed fields", ErrInvalidToken)
	}
	tokenRole, subject, rawExpiry := fields[0], fields[1], fields[2]
	if tokenRole != role {
		return "", fmt.Errorf("%w: role mismatch", ErrInvalidToken)
	}
	expiry, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: malformed expiry", ErrInvalidToken)
	}
	if i.now().Unix() >= expiry {
		return "", fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	if i.revocations != nil {
		revokedAt, found, err := i.revocations.RevokedAt(ctx, role, subject)
		if err != nil {
			// Fail closed: an unreadable denylist must not re-admit revoked sessions.
			i.logger.ErrorContext(ctx, "session revocation lookup failed", "error", err)
			return "", fmt.Errorf("%w: revocation check unavailable", ErrInvalidToken)
		}
		if found && issuedAt.Unix() <= revokedAt {
			return "", fmt.Errorf("%w: revoked", ErrInvalidToken)
		}
	}
	return subject, nil
}

// RevokeSubject invalidates every token of role issued to subject up to now.
// Tokens issued afterwards, and tokens of other roles, stay valid. The entry
// is kept for the role lifetime, after which every affected token has expired.
func (i *Issuer) RevokeSubject(ctx context.Context, role, subject string) error {
	if i.revocations == nil {
		return errors.New("session revocation is not enabled")
	}
	validDays, ok := ValidDays(role)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	revokedAt := i.now().Unix()
	ttl := time.Duration(validDays) * secondsPerDay * time.Second
	if err := i.revocations.Revoke(ctx, role, subject, revokedAt, ttl); err != nil {
		return fmt.Errorf("revoke subject: %w", err)
	}
	i.logger.InfoContext(ctx, "session subject revoked", "role", role, "revoked_at", revokedAt)
	return nil
}
