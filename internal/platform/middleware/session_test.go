package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MockSessionValidator struct {
	mock.Mock
}

func (m *MockSessionValidator) Validate(ctx context.Context, token, role string) (string, error) {
	args := m.Called(ctx, token, role)
	return args.String(0), args.Error(1)
}

// mockHandler captures whether it was called and the request context.
type mockHandler struct {
	called  bool
	context context.Context
}

func (m *mockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.called = true
	m.context = r.Context()
	w.WriteHeader(http.StatusOK)
}

type SessionMiddlewareSuite struct {
	suite.Suite
	validator   *MockSessionValidator
	logger      *slog.Logger
	nextHandler *mockHandler
}

func TestSessionMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(SessionMiddlewareSuite))
}

func (s *SessionMiddlewareSuite) SetupTest() {
	s.validator = new(MockSessionValidator)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.nextHandler = &mockHandler{}
}

func (s *SessionMiddlewareSuite) TearDownTest() {
	s.validator.AssertExpectations(s.T())
}

func (s *SessionMiddlewareSuite) serve(mw func(http.Handler) http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mw(s.nextHandler).ServeHTTP(w, req)
	return w
}

func (s *SessionMiddlewareSuite) TestAdminBearerToken() {
	s.validator.On("Validate", mock.Anything, "tok", "admin").Return("42", nil)
	mw := RequireSession(s.validator, "admin", BearerOrHeader("X-Admin-Token"), s.logger)

	req := httptest.NewRequest(http.MethodGet, "/admin/authorizers/wx1", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := s.serve(mw, req)

	require.True(s.T(), s.nextHandler.called)
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "42", GetSubject(s.nextHandler.context))
	assert.Equal(s.T(), "admin", GetRole(s.nextHandler.context))
}

func (s *SessionMiddlewareSuite) TestAdminHeaderFallback() {
	s.validator.On("Validate", mock.Anything, "tok", "admin").Return("42", nil)
	mw := RequireSession(s.validator, "admin", BearerOrHeader("X-Admin-Token"), s.logger)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Admin-Token", "tok")
	s.serve(mw, req)

	assert.True(s.T(), s.nextHandler.called)
}

func (s *SessionMiddlewareSuite) TestUserCookie() {
	s.validator.On("Validate", mock.Anything, "cookie-tok", "wx_user").Return("openid-1", nil)
	mw := RequireSession(s.validator, "wx_user", Cookie("wx_user"), s.logger)

	req := httptest.NewRequest(http.MethodGet, "/h5/jsapi-config", nil)
	req.AddCookie(&http.Cookie{Name: "wx_user", Value: "cookie-tok"})
	s.serve(mw, req)

	require.True(s.T(), s.nextHandler.called)
	assert.Equal(s.T(), "openid-1", GetSubject(s.nextHandler.context))
}

func (s *SessionMiddlewareSuite) TestMissingToken() {
	mw := RequireSession(s.validator, "wx_user", Cookie("wx_user"), s.logger)

	w := s.serve(mw, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(s.T(), s.nextHandler.called)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.JSONEq(s.T(), `{"error":"unauthorized","error_description":"Missing session token"}`, w.Body.String())
}

func (s *SessionMiddlewareSuite) TestInvalidToken() {
	s.validator.On("Validate", mock.Anything, "stale", "admin").Return("", errors.New("token expired"))
	mw := RequireSession(s.validator, "admin", BearerOrHeader("X-Admin-Token"), s.logger)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer stale")
	w := s.serve(mw, req)

	assert.False(s.T(), s.nextHandler.called)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(s.T(), "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(s.T(), `{"error":"unauthorized","error_description":"Invalid or expired session"}`, w.Body.String())
}

func (s *SessionMiddlewareSuite) TestNonBearerAuthorizationIgnored() {
	mw := RequireSession(s.validator, "admin", BearerOrHeader("X-Admin-Token"), s.logger)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := s.serve(mw, req)

	assert.False(s.T(), s.nextHandler.called)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
}
