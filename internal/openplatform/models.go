package openplatform

import "encoding/json"

// TicketKind selects the derived ticket family.
type TicketKind string

const (
	TicketJSAPI TicketKind = "jsapi"
	TicketCard  TicketKind = "wx_card"
)

// envelope is embedded in every response. A missing errcode means success.
type envelope struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// ComponentToken is this service's platform-wide credential.
type ComponentToken struct {
	Token     string `json:"component_access_token"`
	ExpiresIn int64  `json:"expires_in"`
}

// AuthorizerToken is an authorizer access token plus the (possibly rotated) refresh token.
type AuthorizerToken struct {
	AccessToken  string `json:"authorizer_access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"authorizer_refresh_token"`
}

type Ticket struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int64  `json:"expires_in"`
}

// TypeInfo is the {"id": n} wrapper used for service and verify types.
type TypeInfo struct {
	ID int `json:"id"`
}

// FuncInfo is one granted permission set.
type FuncInfo struct {
	Category struct {
		ID int `json:"id"`
	} `json:"funcscope_category"`
}

// AuthorizerDetails is the descriptive part of api_get_authorizer_info.
type AuthorizerDetails struct {
	NickName        string          `json:"nick_name"`
	HeadImg         string          `json:"head_img"`
	ServiceTypeInfo *TypeInfo       `json:"service_type_info"`
	VerifyTypeInfo  *TypeInfo       `json:"verify_type_info"`
	UserName        string          `json:"user_name"`
	PrincipalName   string          `json:"principal_name"`
	Alias           string          `json:"alias"`
	QRCodeURL       string          `json:"qrcode_url"`
	Signature       string          `json:"signature"`
	BusinessInfo    map[string]int  `json:"business_info"`
	MiniProgramInfo json.RawMessage `json:"MiniProgramInfo"`
}

// AuthorizationInfo lists what the authorizer granted.
type AuthorizationInfo struct {
	AppID        string     `json:"authorizer_appid"`
	AccessToken  string     `json:"authorizer_access_token"`
	ExpiresIn    int64      `json:"expires_in"`
	RefreshToken string     `json:"authorizer_refresh_token"`
	FuncInfo     []FuncInfo `json:"func_info"`
}

// FuncScopes flattens FuncInfo to category ids.
func (a AuthorizationInfo) FuncScopes() []int {
	scopes := make([]int, 0, len(a.FuncInfo))
	for _, f := range a.FuncInfo {
		scopes = append(scopes, f.Category.ID)
	}
	return scopes
}

// AuthorizerInfo is the api_get_authorizer_info response.
type AuthorizerInfo struct {
	Authorizer    *AuthorizerDetails `json:"authorizer_info"`
	Authorization *AuthorizationInfo `json:"authorization_info"`
}

// queryAuthResponse is the api_query_auth response.
type queryAuthResponse struct {
	Authorization *AuthorizationInfo `json:"authorization_info"`
}
