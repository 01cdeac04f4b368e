package handler

import (
	"crypto/subtle"
	"net/http"

	"credgate/internal/platform/middleware"
	id "credgate/pkg/domain"
	dErrors "credgate/pkg/domain-errors"
	"credgate/pkg/platform/httputil"
)

const eventsTokenHeader = "X-Events-Token"

// Event handling results, used as the metric label.
const (
	resultHandled  = "handled"
	resultIgnored  = "ignored"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

// HandlePlatformEvent processes a notification relayed by the decrypting
// front end. The platform retries any notification that is not answered
// with "success", so failures worth retrying answer 503.
func (h *Handler) HandlePlatformEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	if h.eventsToken != "" {
		got := r.Header.Get(eventsTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.eventsToken)) != 1 {
			h.logger.WarnContext(ctx, "platform event rejected - bad relay token", "request_id", requestID)
			h.recordEvent("unknown", resultRejected)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid relay token"))
			return
		}
	}

	req, ok := httputil.DecodeJSON[eventRequest](w, r, h.logger)
	if !ok {
		h.recordEvent("unknown", resultRejected)
		return
	}

	switch req.InfoType {
	case InfoTypeVerifyTicket:
		if err := h.credentials.SaveVerifyTicket(ctx, req.ComponentVerifyTicket); err != nil {
			h.logError(ctx, "failed to save verify ticket", err)
			h.recordEvent(req.InfoType, resultFailed)
			httputil.WriteError(w, err)
			return
		}

	case InfoTypeAuthorized, InfoTypeUpdateAuthorized:
		appID, ok := h.credentials.CompleteAuthorization(ctx, req.AuthorizationCode)
		if !ok {
			h.logger.WarnContext(ctx, "authorization could not be completed",
				"info_type", req.InfoType,
				"request_id", requestID,
			)
			h.recordEvent(req.InfoType, resultFailed)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "authorization could not be completed"))
			return
		}
		h.logger.InfoContext(ctx, "authorizer authorized",
			"appid", appID.String(),
			"info_type", req.InfoType,
			"request_id", requestID,
		)

	case InfoTypeUnauthorized:
		appID, err := id.ParseAppID(req.AuthorizerAppID)
		if err != nil {
			h.recordEvent(req.InfoType, resultRejected)
			httputil.WriteError(w, err)
			return
		}
		if err := h.credentials.Revoke(ctx, appID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				// Nothing to revoke; acknowledge so the platform stops retrying.
				h.logger.InfoContext(ctx, "revocation for unknown authorizer",
					"appid", appID.String(),
					"request_id", requestID,
				)
				h.recordEvent(req.InfoType, resultIgnored)
				writeSuccess(w)
				return
			}
			h.logError(ctx, "failed to revoke authorizer", err, "appid", appID.String())
			h.recordEvent(req.InfoType, resultFailed)
			httputil.WriteError(w, err)
			return
		}
	}

	h.recordEvent(req.InfoType, resultHandled)
	writeSuccess(w)
}

// writeSuccess answers with the literal body the platform expects.
func writeSuccess(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("success"))
}

func (h *Handler) recordEvent(infoType, result string) {
	if h.metrics != nil {
		h.metrics.IncrementPlatformEvent(infoType, result)
	}
}
