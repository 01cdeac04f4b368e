// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "credgate/pkg/domain-errors"
)

// AuthorizerID is the internal primary key of an authorizer record.
type AuthorizerID uuid.UUID

// AppID is the platform-assigned identifier of an authorizer (e.g. "wx570bc396a51b8ff8").
type AppID string

// maxAppIDLength matches the width of the appid column.
const maxAppIDLength = 40

// Parse functions - use at trust boundaries (handlers, event payloads).

func ParseAuthorizerID(s string) (AuthorizerID, error) {
	if s == "" {
		return AuthorizerID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "authorizer ID cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return AuthorizerID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "invalid authorizer ID format")
	}
	return AuthorizerID(id), nil
}

// ParseAppID trims surrounding whitespace and rejects empty, oversized or
// non-alphanumeric identifiers. The value is used verbatim in cache keys, so
// separators such as ':' are refused.
func ParseAppID(s string) (AppID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "app ID cannot be empty")
	}
	if len(s) > maxAppIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "app ID is too long")
	}
	for _, r := range s {
		if !isAlphanumeric(r) && r != '_' && r != '-' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "app ID contains invalid characters")
		}
	}
	return AppID(s), nil
}

func NewAuthorizerID() AuthorizerID { return AuthorizerID(uuid.New()) }

func (id AuthorizerID) String() string { return uuid.UUID(id).String() }
func (id AppID) String() string        { return string(id) }

func (id AuthorizerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AppID) IsNil() bool        { return id == "" }

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
