package handler

import (
	"net/http"
	"net/url"

	id "credgate/pkg/domain"
	dErrors "credgate/pkg/domain-errors"
	"credgate/pkg/platform/httputil"
)

// HandleJSAPIConfig answers GET /h5/jsapi-config?appid=..&url=.. with the
// signed wx.config payload for the page at url.
func (h *Handler) HandleJSAPIConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	appID, err := id.ParseAppID(query.Get("appid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pageURL := query.Get("url")
	if u, err := url.Parse(pageURL); err != nil || u.Scheme == "" || u.Host == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "url must be an absolute page url"))
		return
	}

	cfg, ok := h.jssdk.Config(ctx, appID, pageURL)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "jsapi ticket unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}
