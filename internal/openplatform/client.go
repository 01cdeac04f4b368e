// Package openplatform is the HTTP client for the WeChat open platform's
// third-party component API.
package openplatform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"credgate/pkg/platform/circuit"
	"credgate/pkg/platform/tracer"
)

const (
	DefaultBaseURL = "https://api.weixin.qq.com"

	pathComponentToken  = "/cgi-bin/component/api_component_token"
	pathAuthorizerToken = "/cgi-bin/component/api_authorizer_token"
	pathAuthorizerInfo  = "/cgi-bin/component/api_get_authorizer_info"
	pathQueryAuth       = "/cgi-bin/component/api_query_auth"
	pathTicket          = "/cgi-bin/ticket/getticket"

	maxResponseBytes = 1 << 20
)

// Endpoint names used in errors, spans and logs.
const (
	EndpointComponentToken  = "component_token"
	EndpointAuthorizerToken = "authorizer_token"
	EndpointAuthorizerInfo  = "authorizer_info"
	EndpointQueryAuth       = "query_auth"
	EndpointTicket          = "ticket"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	BaseURL            string
	ComponentAppID     string
	ComponentAppSecret string
	Timeout            time.Duration
	RequestsPerSecond  float64
	Burst              int
	FailureThreshold   int
	SuccessThreshold   int
	Cooldown           time.Duration
}

// Client calls the platform. It never retries: a failed call is reported as
// a *FetchError and the caller decides what to do next.
type Client struct {
	baseURL      string
	componentID  string
	componentKey string
	timeout      time.Duration

	http    HTTPDoer
	limiter *rate.Limiter
	breaker *circuit.Breaker
	tracer  tracer.Tracer
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithBreaker replaces the breaker built from Config.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// New builds a Client. The component app id and secret are required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ComponentAppID == "" || cfg.ComponentAppSecret == "" {
		return nil, errors.New("openplatform: component app id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		componentID:  cfg.ComponentAppID,
		componentKey: cfg.ComponentAppSecret,
		timeout:      cfg.Timeout,
		http:         &http.Client{Timeout: cfg.Timeout},
		limiter:      rate.NewLimiter(limit, burst),
		breaker: circuit.New("openplatform",
			circuit.WithFailureThreshold(cfg.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.SuccessThreshold),
			circuit.WithCooldown(cfg.Cooldown),
		),
		tracer: tracer.NewNoop(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ComponentAppID returns the component app id the client authenticates as.
func (c *Client) ComponentAppID() string {
	return c.componentID
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() circuit.State {
	return c.breaker.State()
}

// ResetBreaker closes the circuit so calls reach the platform again before
// the cooldown elapses.
func (c *Client) ResetBreaker(ctx context.Context) {
	c.breaker.Reset()
	c.logger.InfoContext(ctx, "platform circuit reset", "breaker", c.breaker.Name())
}

// FetchComponentToken exchanges the pushed verify ticket for a component access token.
func (c *Client) FetchComponentToken(ctx context.Context, verifyTicket string) (*ComponentToken, error) {
	body := map[string]string{
		"component_appid":         c.componentID,
		"component_appsecret":     c.componentKey,
		"component_verify_ticket": verifyTicket,
	}
	var out ComponentToken
	err := c.call(ctx, EndpointComponentToken, http.MethodPost, pathComponentToken, nil, body, &out, func() string {
		switch {
		case out.Token == "":
			return "component_access_token"
		case out.ExpiresIn <= 0:
			return "expires_in"
		}
		return ""
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchAuthorizerToken exchanges an authorizer's refresh token for an access token.
// The response may carry a rotated refresh token.
func (c *Client) FetchAuthorizerToken(ctx context.Context, componentToken, appID, refreshToken string) (*AuthorizerToken, error) {
	body := map[string]string{
		"component_appid":          c.componentID,
		"authorizer_appid":         appID,
		"authorizer_refresh_token": refreshToken,
	}
	var out AuthorizerToken
	err := c.call(ctx, EndpointAuthorizerToken, http.MethodPost, pathAuthorizerToken, componentQuery(componentToken), body, &out, func() string {
		switch {
		case out.AccessToken == "":
			return "authorizer_access_token"
		case out.ExpiresIn <= 0:
			return "expires_in"
		case out.RefreshToken == "":
			return "authorizer_refresh_token"
		}
		return ""
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchTicket fetches a derived ticket of the given kind for an authorizer access token.
func (c *Client) FetchTicket(ctx context.Context, accessToken string, kind TicketKind) (*Ticket, error) {
	query := url.Values{}
	query.Set("access_token", accessToken)
	query.Set("type", string(kind))

	var out Ticket
	err := c.call(ctx, EndpointTicket, http.MethodGet, pathTicket, query, nil, &out, func() string {
		switch {
		case out.Ticket == "":
			return "ticket"
		case out.ExpiresIn <= 0:
			return "expires_in"
		}
		return ""
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchAuthorizerInfo fetches an authorizer's descriptive profile and granted scopes.
func (c *Client) FetchAuthorizerInfo(ctx context.Context, componentToken, appID string) (*AuthorizerInfo, error) {
	body := map[string]string{
		"component_appid":  c.componentID,
		"authorizer_appid": appID,
	}
	var out AuthorizerInfo
	err := c.call(ctx, EndpointAuthorizerInfo, http.MethodPost, pathAuthorizerInfo, componentQuery(componentToken), body, &out, func() string {
		switch {
		case out.Authorizer == nil:
			return "authorizer_info"
		case out.Authorization == nil:
			return "authorization_info"
		}
		return ""
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryAuth exchanges an authorization code for the authorizer's first token pair.
func (c *Client) QueryAuth(ctx context.Context, componentToken, authCode string) (*AuthorizationInfo, error) {
	body := map[string]string{
		"component_appid":    c.componentID,
		"authorization_code": authCode,
	}
	var out queryAuthResponse
	err := c.call(ctx, EndpointQueryAuth, http.MethodPost, pathQueryAuth, componentQuery(componentToken), body, &out, func() string {
		info := out.Authorization
		switch {
		case info == nil:
			return "authorization_info"
		case info.AppID == "":
			return "authorization_info.authorizer_appid"
		case info.AccessToken == "":
			return "authorization_info.authorizer_access_token"
		case info.ExpiresIn <= 0:
			return "authorization_info.expires_in"
		case info.RefreshToken == "":
			return "authorization_info.authorizer_refresh_token"
		}
		return ""
	})
	if err != nil {
		return nil, err
	}
	return out.Authorization, nil
}

func componentQuery(componentToken string) url.Values {
	q := url.Values{}
	q.Set("component_access_token", componentToken)
	return q
}

// call runs one request through the breaker and limiter, decodes the
// envelope and then the body into out. missing names the first absent
// required field, or returns "".
func (c *Client) call(ctx context.Context, endpoint, method, path string, query url.Values, body, out any, missing func() string) (err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanPlatformCall, tracer.String(tracer.AttrEndpoint, endpoint))
	defer func() {
		if err != nil {
			span.SetAttributes(tracer.String(tracer.AttrFailureCategory, string(CategoryOf(err))))
		}
		span.End(err)
	}()

	if !c.breaker.Allow() {
		return newFetchError(CategoryCircuitOpen, endpoint, "circuit open", 0, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if waitErr := c.limiter.Wait(ctx); waitErr != nil {
		return newFetchError(CategoryRateLimited, endpoint, "outbound rate limit", 0, waitErr)
	}

	raw, fe := c.roundTrip(ctx, endpoint, method, path, query, body)
	if fe == nil {
		fe = decode(endpoint, raw, out, missing)
	}
	c.record(ctx, endpoint, fe)
	if fe != nil {
		return fe
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, query url.Values, body any) ([]byte, *FetchError) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, newFetchError(CategoryInternal, endpoint, "failed to marshal request", 0, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, newFetchError(CategoryInternal, endpoint, "failed to create request", 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			return nil, newFetchError(CategoryTimeout, endpoint, "request timed out", 0, err)
		}
		return nil, newFetchError(CategoryOutage, endpoint, "request failed", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newFetchError(CategoryTimeout, endpoint, "reading response timed out", 0, err)
		}
		return nil, newFetchError(CategoryOutage, endpoint, "failed to read response", 0, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, newFetchError(CategoryOutage, endpoint, "upstream error", resp.StatusCode, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newFetchError(CategoryRateLimited, endpoint, "upstream throttled", resp.StatusCode, nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, newFetchError(CategoryPlatform, endpoint, "unexpected status", resp.StatusCode, nil)
	}
	return raw, nil
}

func decode(endpoint string, raw []byte, out any, missing func() string) *FetchError {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return newFetchError(CategoryBadData, endpoint, "response is not JSON", 0, err)
	}
	if env.ErrCode != 0 {
		return newFetchError(categorizeErrcode(env.ErrCode), endpoint, env.ErrMsg, env.ErrCode, nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return newFetchError(CategoryBadData, endpoint, "failed to decode response", 0, err)
	}
	if field := missing(); field != "" {
		return newFetchError(CategoryBadData, endpoint, fmt.Sprintf("response missing %s", field), 0, nil)
	}
	return nil
}

func (c *Client) record(ctx context.Context, endpoint string, fe *FetchError) {
	var change circuit.StateChange
	switch {
	case fe == nil:
		change = c.breaker.RecordSuccess()
	case countsAgainstBreaker(fe.Category):
		change = c.breaker.RecordFailure()
	default:
		// The platform answered; its health is fine even if the request was refused.
		change = c.breaker.RecordSuccess()
	}

	if change.Opened {
		c.logger.WarnContext(ctx, "platform circuit opened",
			"breaker", c.breaker.Name(),
			"endpoint", endpoint,
			"category", fe.Category,
		)
	}
	if change.Closed {
		c.logger.InfoContext(ctx, "platform circuit closed",
			"breaker", c.breaker.Name(),
			"endpoint", endpoint,
		)
	}
}
