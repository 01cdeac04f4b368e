package handler

import (
	"errors"
	"net/http"
	"slices"
	"strconv"

	"credgate/internal/credential/cache"
	"credgate/internal/platform/middleware"
	"credgate/internal/session"
	id "credgate/pkg/domain"
	dErrors "credgate/pkg/domain-errors"
	"credgate/pkg/platform/audit"
	"credgate/pkg/platform/httputil"
	"credgate/pkg/platform/sentinel"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

func (h *Handler) HandleListAuthorizers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.authorizers.List(ctx)
	if err != nil {
		h.logError(ctx, "failed to list authorizers", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list authorizers"))
		return
	}
	resp := make([]authorizerResponse, 0, len(records))
	for _, a := range records {
		resp = append(resp, toAuthorizerResponse(a))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"authorizers": resp})
}

func (h *Handler) HandleGetAuthorizer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := h.appIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.authorizers.FindByAppID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "authorizer not found"))
			return
		}
		h.logError(ctx, "failed to load authorizer", err, "appid", appID.String())
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load authorizer"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuthorizerResponse(a))
}

// HandleRevokeAuthorizer revokes an authorizer without waiting for the
// platform's unauthorized notification.
func (h *Handler) HandleRevokeAuthorizer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := h.appIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.credentials.Revoke(ctx, appID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logError(ctx, "failed to revoke authorizer", err, "appid", appID.String())
		}
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSyncProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := h.appIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	updated, ok := h.credentials.RefreshProfile(ctx, appID)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "profile could not be refreshed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profileSyncResponse{AppID: appID.String(), Updated: updated})
}

func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[invalidateRequest](w, r, h.logger)
	if !ok {
		return
	}
	var appID id.AppID
	if req.AppID != "" {
		parsed, err := id.ParseAppID(req.AppID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		appID = parsed
	}
	if err := h.credentials.Invalidate(ctx, appID, cache.Kind(req.Kind)); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnavailable) {
			h.logError(ctx, "failed to invalidate credential", err, "kind", req.Kind)
		}
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAddCardParams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := h.appIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[addCardRequest](w, r, h.logger)
	if !ok {
		return
	}
	params, ok := h.cards.AddCardParams(ctx, appID, req.CardID, req.Code, req.OpenID)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "card ticket unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, params)
}

func (h *Handler) HandleChooseCardParams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := h.appIDParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[chooseCardRequest](w, r, h.logger)
	if !ok {
		return
	}
	params, ok := h.cards.ChooseCardParams(ctx, appID, req.ShopID, req.CardType, req.CardID)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "card ticket unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, params)
}

// HandleAuditEvents lists recent audit events, newest first. ?appid= narrows
// the list to one authorizer; ?limit= caps it.
func (h *Handler) HandleAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	var events []audit.Event
	if raw := r.URL.Query().Get("appid"); raw != "" {
		appID, err := id.ParseAppID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		events = h.trail.ListByAppID(ctx, appID.String())
		slices.Reverse(events)
		if len(events) > limit {
			events = events[:limit]
		}
	} else {
		events = h.trail.Recent(ctx, limit)
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// HandleRevokeSessions invalidates every outstanding session of a subject.
func (h *Handler) HandleRevokeSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[revokeSessionsRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.sessions.RevokeSubject(ctx, req.Role, req.Subject); err != nil {
		if errors.Is(err, session.ErrUnknownRole) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown session role"))
			return
		}
		h.logError(ctx, "failed to revoke sessions", err, "subject", req.Subject)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "session revocation failed"))
		return
	}
	h.auditLogger.Log(ctx, audit.EventSessionRevoked,
		"subject", req.Subject,
		"role", req.Role,
		"revoked_by", middleware.GetSubject(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetCircuit closes the platform circuit breaker.
func (h *Handler) HandleResetCircuit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.circuit.ResetBreaker(ctx)
	h.auditLogger.Log(ctx, audit.EventCircuitReset, "reset_by", middleware.GetSubject(ctx))
	w.WriteHeader(http.StatusNoContent)
}
