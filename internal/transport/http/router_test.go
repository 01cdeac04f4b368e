package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"credgate/internal/authorizer/store"
	"credgate/internal/credential/cache"
	"credgate/internal/credential/handler"
	"credgate/internal/jssdk"
	"credgate/internal/platform/health"
	"credgate/internal/session"
	id "credgate/pkg/domain"
)

type nopCredentials struct{}

func (nopCredentials) SaveVerifyTicket(context.Context, string) error {
	return nil
}

func (nopCredentials) CompleteAuthorization(context.Context, string) (id.AppID, bool) {
	return "wx1", true
}

func (nopCredentials) Revoke(context.Context, id.AppID) error {
	return nil
}

func (nopCredentials) RefreshProfile(context.Context, id.AppID) (bool, bool) {
	return false, true
}

func (nopCredentials) Invalidate(context.Context, id.AppID, cache.Kind) error {
	return nil
}

type fixedJSSDK struct{}

func (fixedJSSDK) Config(_ context.Context, appID id.AppID, _ string) (jssdk.Config, bool) {
	return jssdk.Config{AppID: appID.String(), Timestamp: 1, NonceStr: "n", Signature: "s"}, true
}

type RouterSuite struct {
	suite.Suite
	issuer *session.Issuer
	router http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	codec, err := session.NewCodec([]byte("router-test-secret-0123"))
	s.Require().NoError(err)
	s.issuer = session.NewIssuer(codec)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.New(nopCredentials{}, store.NewInMemory(), logger, handler.WithJSSDK(fixedJSSDK{}))
	metricsStub := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	s.router = NewRouter(Router{
		Credentials:    h,
		Health:         health.New("test"),
		Sessions:       s.issuer,
		MetricsHandler: metricsStub,
	}, logger)
}

func (s *RouterSuite) token(role, subject string) string {
	days := session.AdminValidDays
	if role == session.RoleUser {
		days = session.UserValidDays
	}
	token, err := s.issuer.Issue(subject, role, days)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestAdminRequiresAdminSession() {
	s.Run("missing token", func() {
		rec := s.serve(httptest.NewRequest(http.MethodGet, "/admin/authorizers", nil))
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("bearer token", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/authorizers", nil)
		req.Header.Set("Authorization", "Bearer "+s.token(session.RoleAdmin, "42"))
		rec := s.serve(req)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("header token", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/authorizers", nil)
		req.Header.Set(AdminTokenHeader, s.token(session.RoleAdmin, "42"))
		rec := s.serve(req)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("user token is refused", func() {
		req := httptest.NewRequest(http.MethodGet, "/admin/authorizers", nil)
		req.Header.Set("Authorization", "Bearer "+s.token(session.RoleUser, "oUser"))
		rec := s.serve(req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *RouterSuite) TestH5RequiresUserCookie() {
	path := "/h5/jsapi-config?appid=wx1&url=https%3A%2F%2Fexample.com%2F"

	rec := s.serve(httptest.NewRequest(http.MethodGet, path, nil))
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: session.UserCookieName, Value: s.token(session.RoleAdmin, "42")})
	rec = s.serve(req)
	s.Equal(http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: session.UserCookieName, Value: s.token(session.RoleUser, "oUser")})
	rec = s.serve(req)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"appId":"wx1"`)
}

func (s *RouterSuite) TestPlatformEventsArePublic() {
	req := httptest.NewRequest(http.MethodPost, "/platform/events",
		strings.NewReader(`{"info_type":"component_verify_ticket","component_verify_ticket":"t"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := s.serve(req)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
}

func (s *RouterSuite) TestNonJSONBodyRejected() {
	req := httptest.NewRequest(http.MethodPost, "/platform/events", strings.NewReader("info_type=authorized"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.serve(req)
	s.Equal(http.StatusUnsupportedMediaType, rec.Code)
}

func (s *RouterSuite) TestOperationalRoutes() {
	rec := s.serve(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	s.Equal(http.StatusOK, rec.Code)

	rec = s.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("# metrics", rec.Body.String())
}
