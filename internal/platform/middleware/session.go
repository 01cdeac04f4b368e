package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// SessionValidator validates a session token for a role and returns its subject.
type SessionValidator interface {
	Validate(ctx context.Context, token, role string) (string, error)
}

// TokenExtractor pulls a raw session token out of a request. It returns "" when absent.
type TokenExtractor func(r *http.Request) string

// BearerOrHeader reads "Authorization: Bearer <token>" and falls back to the named header.
func BearerOrHeader(header string) TokenExtractor {
	return func(r *http.Request) string {
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return strings.TrimSpace(r.Header.Get(header))
	}
}

// Cookie reads the token from the named cookie.
func Cookie(name string) TokenExtractor {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

type contextKeySubject struct{}
type contextKeyRole struct{}

// GetSubject returns the subject of the validated session, or "".
func GetSubject(ctx context.Context) string {
	subject, _ := ctx.Value(contextKeySubject{}).(string)
	return subject
}

// GetRole returns the role the session was validated for, or "".
func GetRole(ctx context.Context) string {
	role, _ := ctx.Value(contextKeyRole{}).(string)
	return role
}

// WithSubject stores a validated subject and role on ctx.
func WithSubject(ctx context.Context, subject, role string) context.Context {
	ctx = context.WithValue(ctx, contextKeySubject{}, subject)
	return context.WithValue(ctx, contextKeyRole{}, role)
}

// RequireSession admits requests carrying a valid session token for role.
// Validation failures are terminal 401s.
func RequireSession(validator SessionValidator, role string, extract TokenExtractor, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := extract(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing session token",
					"role", role,
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing session token")
				return
			}

			subject, err := validator.Validate(ctx, token, role)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid session token",
					"role", role,
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired session")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(ctx, subject, role)))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
