package handler

import (
	"strings"
	"time"

	"credgate/internal/authorizer/models"
)

// Notification info types relayed from the platform.
const (
	InfoTypeVerifyTicket     = "component_verify_ticket"
	InfoTypeAuthorized       = "authorized"
	InfoTypeUpdateAuthorized = "updateauthorized"
	InfoTypeUnauthorized     = "unauthorized"
)

type eventRequest struct {
	InfoType              string `json:"info_type" validate:"required,oneof=component_verify_ticket authorized updateauthorized unauthorized"`
	ComponentVerifyTicket string `json:"component_verify_ticket" validate:"required_if=InfoType component_verify_ticket"`
	AuthorizerAppID       string `json:"authorizer_appid" validate:"required_if=InfoType unauthorized"`
	AuthorizationCode     string `json:"authorization_code" validate:"required_if=InfoType authorized,required_if=InfoType updateauthorized"`
}

func (r *eventRequest) Normalize() {
	r.InfoType = strings.ToLower(strings.TrimSpace(r.InfoType))
	r.ComponentVerifyTicket = strings.TrimSpace(r.ComponentVerifyTicket)
	r.AuthorizerAppID = strings.TrimSpace(r.AuthorizerAppID)
	r.AuthorizationCode = strings.TrimSpace(r.AuthorizationCode)
}

type invalidateRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=component_access_token component_verify_ticket access_token jsapi_ticket card_api_ticket"`
	AppID string `json:"appid"`
}

func (r *invalidateRequest) Normalize() {
	r.Kind = strings.TrimSpace(r.Kind)
	r.AppID = strings.TrimSpace(r.AppID)
}

type addCardRequest struct {
	CardID string `json:"card_id" validate:"required,max=64"`
	Code   string `json:"code" validate:"max=64"`
	OpenID string `json:"openid" validate:"max=64"`
}

func (r *addCardRequest) Normalize() {
	r.CardID = strings.TrimSpace(r.CardID)
	r.Code = strings.TrimSpace(r.Code)
	r.OpenID = strings.TrimSpace(r.OpenID)
}

type chooseCardRequest struct {
	ShopID   string `json:"shop_id" validate:"max=64"`
	CardType string `json:"card_type" validate:"max=32"`
	CardID   string `json:"card_id" validate:"max=64"`
}

func (r *chooseCardRequest) Normalize() {
	r.ShopID = strings.TrimSpace(r.ShopID)
	r.CardType = strings.TrimSpace(r.CardType)
	r.CardID = strings.TrimSpace(r.CardID)
}

type revokeSessionsRequest struct {
	Subject string `json:"subject" validate:"required,notblank,max=128"`
	Role    string `json:"role" validate:"required,oneof=admin wx_user"`
}

func (r *revokeSessionsRequest) Normalize() {
	r.Subject = strings.TrimSpace(r.Subject)
	r.Role = strings.TrimSpace(r.Role)
}

type authorizerResponse struct {
	ID         string         `json:"id"`
	AppID      string         `json:"appid"`
	Authorized bool           `json:"authorized"`
	FuncScopes []int          `json:"func_scopes"`
	Profile    models.Profile `json:"profile"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func toAuthorizerResponse(a *models.Authorizer) authorizerResponse {
	scopes := a.FuncScopes
	if scopes == nil {
		scopes = []int{}
	}
	return authorizerResponse{
		ID:         a.ID.String(),
		AppID:      a.AppID.String(),
		Authorized: a.Authorized,
		FuncScopes: scopes,
		Profile:    a.Profile,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

type profileSyncResponse struct {
	AppID   string `json:"appid"`
	Updated bool   `json:"updated"`
}
