package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "credgate/pkg/domain-errors"
	"credgate/pkg/validation"
)

// Normalizable is implemented by request types that trim or canonicalize their fields.
type Normalizable interface {
	Normalize()
}

// DecodeJSON decodes a size-limited JSON body into T, normalizes it and runs
// struct-tag validation. On failure it writes the error response and returns false.
//
//	req, ok := httputil.DecodeJSON[eventRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()
	var req T
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize)).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body", "error", err, "path", r.URL.Path)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if n, ok := any(&req).(Normalizable); ok {
		n.Normalize()
	}

	if err := validation.Validate(&req); err != nil {
		logger.WarnContext(ctx, "invalid request", "error", err, "path", r.URL.Path)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
