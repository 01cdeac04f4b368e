// Command openplatform-mock is a local stand-in for the WeChat open platform
// component API, for running credgate without real credentials.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultPort      = "8090"
	defaultAppSecret = "mock-component-secret"
	defaultLatencyMs = "20"
	tokenLifetime    = 7200
)

// Platform error codes returned by the mock.
const (
	errInvalidCredential = 40001
	errRefreshRejected   = 61023
	errSystemBusy        = -1
)

var (
	appSecret = getEnv("COMPONENT_APPSECRET", defaultAppSecret)
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)
)

type platform struct {
	mu              sync.Mutex
	componentTokens map[string]bool
	accessTokens    map[string]string // token -> appid
	refreshTokens   map[string]string // appid -> current refresh token
}

func main() {
	port := getEnv("PORT", defaultPort)
	p := &platform{
		componentTokens: make(map[string]bool),
		accessTokens:    make(map[string]string),
		refreshTokens:   make(map[string]string),
	}

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/cgi-bin/component/api_component_token", p.handleComponentToken)
	http.HandleFunc("/cgi-bin/component/api_query_auth", p.handleQueryAuth)
	http.HandleFunc("/cgi-bin/component/api_authorizer_token", p.handleAuthorizerToken)
	http.HandleFunc("/cgi-bin/component/api_get_authorizer_info", p.handleAuthorizerInfo)
	http.HandleFunc("/cgi-bin/ticket/getticket", p.handleTicket)

	log.Printf("mock open platform starting on port %s (latency %dms)", port, latencyMs)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy", "service": "openplatform-mock"})
}

func (p *platform) handleComponentToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppID        string `json:"component_appid"`
		AppSecret    string `json:"component_appsecret"`
		VerifyTicket string `json:"component_verify_ticket"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.AppSecret != appSecret || req.VerifyTicket == "" {
		writeErr(w, errInvalidCredential, "invalid credential")
		return
	}
	token := "component-" + randomHex()
	p.mu.Lock()
	p.componentTokens[token] = true
	p.mu.Unlock()
	writeJSON(w, map[string]any{"component_access_token": token, "expires_in": tokenLifetime})
}

// handleQueryAuth accepts any code of the form "<appid>@@@<anything>". The
// codes "busy@@@x" and "expired@@@x" trigger platform errors.
func (p *platform) handleQueryAuth(w http.ResponseWriter, r *http.Request) {
	if !p.componentAuthorized(w, r) {
		return
	}
	var req struct {
		Code string `json:"authorization_code"`
	}
	if !decode(w, r, &req) {
		return
	}
	appID, _, ok := strings.Cut(req.Code, "@@@")
	switch {
	case !ok || appID == "":
		writeErr(w, 61010, "invalid authorization code")
		return
	case appID == "busy":
		writeErr(w, errSystemBusy, "system busy")
		return
	case appID == "expired":
		writeErr(w, 61010, "authorization code expired")
		return
	}

	access, refresh := p.issuePair(appID)
	writeJSON(w, map[string]any{
		"authorization_info": map[string]any{
			"authorizer_appid":         appID,
			"authorizer_access_token":  access,
			"expires_in":               tokenLifetime,
			"authorizer_refresh_token": refresh,
			"func_info":                funcInfo(1, 15, 4),
		},
	})
}

func (p *platform) handleAuthorizerToken(w http.ResponseWriter, r *http.Request) {
	if !p.componentAuthorized(w, r) {
		return
	}
	var req struct {
		AppID        string `json:"authorizer_appid"`
		RefreshToken string `json:"authorizer_refresh_token"`
	}
	if !decode(w, r, &req) {
		return
	}
	p.mu.Lock()
	current := p.refreshTokens[req.AppID]
	p.mu.Unlock()
	if current == "" || current != req.RefreshToken {
		writeErr(w, errRefreshRejected, "invalid refresh token")
		return
	}
	access, refresh := p.issuePair(req.AppID)
	writeJSON(w, map[string]any{
		"authorizer_access_token":  access,
		"expires_in":               tokenLifetime,
		"authorizer_refresh_token": refresh,
	})
}

func (p *platform) handleAuthorizerInfo(w http.ResponseWriter, r *http.Request) {
	if !p.componentAuthorized(w, r) {
		return
	}
	var req struct {
		AppID string `json:"authorizer_appid"`
	}
	if !decode(w, r, &req) {
		return
	}
	p.mu.Lock()
	refresh := p.refreshTokens[req.AppID]
	p.mu.Unlock()
	if refresh == "" {
		writeErr(w, 61003, "component is not authorized by this account")
		return
	}
	writeJSON(w, map[string]any{
		"authorizer_info": map[string]any{
			"nick_name":         "Mock Account " + req.AppID,
			"head_img":          "http://wx.qlogo.cn/mmopen/mock/0",
			"service_type_info": map[string]int{"id": 2},
			"verify_type_info":  map[string]int{"id": 0},
			"user_name":         "gh_" + req.AppID,
			"principal_name":    "Mock Principal",
			"alias":             "mock_" + req.AppID,
			"qrcode_url":        "http://mmbiz.qpic.cn/mmbiz/mock/0",
			"business_info":     map[string]int{"open_pay": 1, "open_card": 1, "open_store": 0, "open_scan": 0, "open_shake": 0},
		},
		"authorization_info": map[string]any{
			"authorizer_appid":         req.AppID,
			"authorizer_refresh_token": refresh,
			"func_info":                funcInfo(1, 15, 4),
		},
	})
}

func (p *platform) handleTicket(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	token := r.URL.Query().Get("access_token")
	p.mu.Lock()
	_, ok := p.accessTokens[token]
	p.mu.Unlock()
	if !ok {
		writeErr(w, errInvalidCredential, "invalid access_token")
		return
	}
	kind := r.URL.Query().Get("type")
	if kind != "jsapi" && kind != "wx_card" {
		writeErr(w, 40097, "invalid args")
		return
	}
	writeJSON(w, map[string]any{
		"errcode":    0,
		"errmsg":     "ok",
		"ticket":     kind + "-" + randomHex(),
		"expires_in": tokenLifetime,
	})
}

func (p *platform) componentAuthorized(w http.ResponseWriter, r *http.Request) bool {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	token := r.URL.Query().Get("component_access_token")
	p.mu.Lock()
	ok := p.componentTokens[token]
	p.mu.Unlock()
	if !ok {
		writeErr(w, errInvalidCredential, "invalid component_access_token")
	}
	return ok
}

// issuePair mints an access token and rotates the refresh token of appID.
func (p *platform) issuePair(appID string) (string, string) {
	access := "access-" + randomHex()
	refresh := "refreshtoken@@@" + randomHex()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessTokens[access] = appID
	p.refreshTokens[appID] = refresh
	return access, refresh
}

func funcInfo(ids ...int) []map[string]any {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"funcscope_category": map[string]int{"id": id}})
	}
	return out
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeErr(w, 43002, "require POST method")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, 47001, "data format error")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

// writeErr answers 200 with an errcode envelope, as the platform does.
func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, map[string]any{"errcode": code, "errmsg": msg})
	log.Printf("error response: %d %s", code, msg)
}

func randomHex() string {
	b := make([]byte, 12)
	rand.Read(b) //nolint:errcheck
	return hex.EncodeToString(b)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid integer value for %s, using default %s", key, defaultValue)
		intValue, _ = strconv.Atoi(defaultValue)
	}
	return intValue
}
