package broker

//go:generate mockgen -source=broker.go -destination=mocks/mocks.go -package=mocks PlatformClient,AuthorizerStore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"credgate/internal/authorizer/models"
	"credgate/internal/credential/broker/mocks"
	"credgate/internal/credential/cache"
	credmetrics "credgate/internal/credential/metrics"
	"credgate/internal/openplatform"
	dErrors "credgate/pkg/domain-errors"
	"credgate/pkg/platform/sentinel"
	"credgate/pkg/testutil"
)

const componentAppID = "wxcomponent"

type BrokerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	platform *mocks.MockPlatformClient
	store    *mocks.MockAuthorizerStore
	cache    *cache.InMemory
	metrics  *credmetrics.Metrics
	now      time.Time
	broker   *Broker
}

func TestBrokerSuite(t *testing.T) {
	suite.Run(t, new(BrokerSuite))
}

func (s *BrokerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.platform = mocks.NewMockPlatformClient(s.ctrl)
	s.store = mocks.NewMockAuthorizerStore(s.ctrl)
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.cache = cache.NewInMemory(cache.WithClock(func() time.Time { return s.now }))
	s.metrics = credmetrics.NewWithRegistry(prometheus.NewRegistry())
	s.broker = New(s.platform, s.store, s.cache, componentAppID,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *BrokerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *BrokerSuite) seed(key cache.Key, value string) {
	s.Require().NoError(s.cache.Set(context.Background(), key, value, time.Hour))
}

func (s *BrokerSuite) seedComponentToken() {
	s.seed(cache.ComponentKey(componentAppID, cache.KindComponentToken), "ctok")
}

func (s *BrokerSuite) ttl(key cache.Key) time.Duration {
	ttl, ok := s.cache.TTL(context.Background(), key)
	s.Require().True(ok, "expected %s to be cached", key)
	return ttl
}

func (s *BrokerSuite) TestComponentToken() {
	ctx := context.Background()
	key := cache.ComponentKey(componentAppID, cache.KindComponentToken)

	s.Run("fetches once with the verify ticket and caches with refresh-ahead ttl", func() {
		s.seed(cache.ComponentKey(componentAppID, cache.KindVerifyTicket), "ticket@@@1")
		s.platform.EXPECT().FetchComponentToken(gomock.Any(), "ticket@@@1").
			Return(&openplatform.ComponentToken{Token: "ctok", ExpiresIn: 3600}, nil).Times(1)

		tok, ok := s.broker.ComponentToken(ctx)
		s.True(ok)
		s.Equal("ctok", tok)
		s.Equal(3000*time.Second, s.ttl(key))

		tok, ok = s.broker.ComponentToken(ctx)
		s.True(ok)
		s.Equal("ctok", tok)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.CacheHits.WithLabelValues(string(cache.KindComponentToken))))
	})
}

func (s *BrokerSuite) TestComponentTokenWithoutVerifyTicket() {
	tok, ok := s.broker.ComponentToken(context.Background())
	s.False(ok)
	s.Empty(tok)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Fetches.WithLabelValues(string(cache.KindComponentToken), credmetrics.OutcomeAbsent)))
}

func (s *BrokerSuite) TestShortLivedCredentialIsNotCached() {
	ctx := context.Background()
	s.seed(cache.ComponentKey(componentAppID, cache.KindVerifyTicket), "ticket")
	s.platform.EXPECT().FetchComponentToken(gomock.Any(), "ticket").
		Return(&openplatform.ComponentToken{Token: "ctok", ExpiresIn: 600}, nil).Times(2)

	for range 2 {
		tok, ok := s.broker.ComponentToken(ctx)
		s.True(ok)
		s.Equal("ctok", tok)
	}
	_, cached := s.cache.TTL(ctx, cache.ComponentKey(componentAppID, cache.KindComponentToken))
	s.False(cached)
}

func (s *BrokerSuite) TestAccessTokenWithoutRotation() {
	ctx := context.Background()
	s.seedComponentToken()
	auth := testutil.NewAuthorizerBuilder().Build()

	s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil).Times(2)
	s.platform.EXPECT().FetchAuthorizerToken(gomock.Any(), "ctok", auth.AppID.String(), auth.RefreshToken).
		Return(&openplatform.AuthorizerToken{AccessToken: "atok", ExpiresIn: 7200, RefreshToken: auth.RefreshToken}, nil)
	// No Update expected: an unchanged refresh token is never written.

	tok, ok := s.broker.AccessToken(ctx, auth.AppID)
	s.True(ok)
	s.Equal("atok", tok)
	s.Equal(6600*time.Second, s.ttl(cache.AuthorizerKey(auth.AppID.String(), cache.KindAccessToken)))

	tok, ok = s.broker.AccessToken(ctx, auth.AppID)
	s.True(ok)
	s.Equal("atok", tok)
}

func (s *BrokerSuite) TestAccessTokenColdChain() {
	ctx := context.Background()
	s.seed(cache.ComponentKey(componentAppID, cache.KindVerifyTicket), "ticket@@@1")
	auth := testutil.NewAuthorizerBuilder().Build()

	s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil).Times(2)
	s.platform.EXPECT().FetchComponentToken(gomock.Any(), "ticket@@@1").
		Return(&openplatform.ComponentToken{Token: "ctok", ExpiresIn: 7200}, nil).Times(1)
	s.platform.EXPECT().FetchAuthorizerToken(gomock.Any(), "ctok", auth.AppID.String(), auth.RefreshToken).
		Return(&openplatform.AuthorizerToken{AccessToken: "atok", ExpiresIn: 7200, RefreshToken: auth.RefreshToken}, nil).Times(1)

	for range 2 {
		tok, ok := s.broker.AccessToken(ctx, auth.AppID)
		s.True(ok)
		s.Equal("atok", tok)
	}
	s.Equal(6600*time.Second, s.ttl(cache.ComponentKey(componentAppID, cache.KindComponentToken)))
	s.Equal(6600*time.Second, s.ttl(cache.AuthorizerKey(auth.AppID.String(), cache.KindAccessToken)))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.CacheHits.WithLabelValues(string(cache.KindAccessToken))))
}

func (s *BrokerSuite) TestAccessTokenRotatesRefreshToken() {
	ctx := context.Background()
	s.seedComponentToken()
	auth := testutil.NewAuthorizerBuilder().Build()

	s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil).Times(2)
	s.platform.EXPECT().FetchAuthorizerToken(gomock.Any(), "ctok", auth.AppID.String(), auth.RefreshToken).
		Return(&openplatform.AuthorizerToken{AccessToken: "atok", ExpiresIn: 7200, RefreshToken: "refreshtoken@@@rotated"}, nil)
	s.store.EXPECT().Update(gomock.Any(), auth.AppID, gomock.Any(), s.now).
		DoAndReturn(func(_ context.Context, _ any, changes models.Changes, _ time.Time) error {
			s.Require().NotNil(changes.RefreshToken)
			s.Equal("refreshtoken@@@rotated", *changes.RefreshToken)
			s.Nil(changes.Authorized)
			return nil
		}).Times(1)

	tok, ok := s.broker.AccessToken(ctx, auth.AppID)
	s.True(ok)
	s.Equal("atok", tok)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.RefreshTokenRotations))
}

func (s *BrokerSuite) TestAccessTokenRotationWriteFailureStillReturnsToken() {
	s.seedComponentToken()
	auth := testutil.NewAuthorizerBuilder().Build()

	s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil).Times(2)
	s.platform.EXPECT().FetchAuthorizerToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&openplatform.AuthorizerToken{AccessToken: "atok", ExpiresIn: 7200, RefreshToken: "rotated"}, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	tok, ok := s.broker.AccessToken(context.Background(), auth.AppID)
	s.True(ok)
	s.Equal("atok", tok)
}

func (s *BrokerSuite) TestAccessTokenUnavailable() {
	ctx := context.Background()

	s.Run("unknown authorizer", func() {
		s.store.EXPECT().FindByAppID(gomock.Any(), testutil.TestAppID2).Return(nil, sentinel.ErrNotFound)
		_, ok := s.broker.AccessToken(ctx, testutil.TestAppID2)
		s.False(ok)
	})

	s.Run("unauthorized record never reaches the platform", func() {
		auth := testutil.NewAuthorizerBuilder().Unauthorized().Build()
		s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)
		_, ok := s.broker.AccessToken(ctx, auth.AppID)
		s.False(ok)
	})

	s.Run("component token unavailable", func() {
		auth := testutil.NewAuthorizerBuilder().Build()
		s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)
		_, ok := s.broker.AccessToken(ctx, auth.AppID)
		s.False(ok)
	})

	s.Run("platform failure", func() {
		s.seedComponentToken()
		auth := testutil.NewAuthorizerBuilder().Build()
		s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)
		s.platform.EXPECT().FetchAuthorizerToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &openplatform.FetchError{Category: openplatform.CategoryOutage, Endpoint: openplatform.EndpointAuthorizerToken})
		_, ok := s.broker.AccessToken(ctx, auth.AppID)
		s.False(ok)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.Fetches.WithLabelValues(string(cache.KindAccessToken), string(openplatform.CategoryOutage))))
	})
}

func (s *BrokerSuite) TestRejectedComponentTokenIsEvicted() {
	ctx := context.Background()
	s.seedComponentToken()
	auth := testutil.NewAuthorizerBuilder().Build()
	s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)
	s.platform.EXPECT().FetchAuthorizerToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &openplatform.FetchError{Category: openplatform.CategoryInvalidCredential, Code: 42001})

	_, ok := s.broker.AccessToken(ctx, auth.AppID)
	s.False(ok)

	_, cached, err := s.cache.Get(ctx, cache.ComponentKey(componentAppID, cache.KindComponentToken))
	s.Require().NoError(err)
	s.False(cached)
}

func (s *BrokerSuite) TestRejectedRefreshTokenKeepsComponentToken() {
	ctx := context.Background()
	s.seedComponentToken()
	auth := testutil.NewAuthorizerBuilder().Build()
	s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)
	s.platform.EXPECT().FetchAuthorizerToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &openplatform.FetchError{Category: openplatform.CategoryInvalidCredential, Code: 61023})

	_, ok := s.broker.AccessToken(ctx, auth.AppID)
	s.False(ok)

	_, cached, err := s.cache.Get(ctx, cache.ComponentKey(componentAppID, cache.KindComponentToken))
	s.Require().NoError(err)
	s.True(cached)
}

func (s *BrokerSuite) TestDerivedTickets() {
	ctx := context.Background()
	appID := testutil.TestAppID1
	s.seed(cache.AuthorizerKey(appID.String(), cache.KindAccessToken), "atok")

	s.platform.EXPECT().FetchTicket(gomock.Any(), "atok", openplatform.TicketJSAPI).
		Return(&openplatform.Ticket{Ticket: "jsticket", ExpiresIn: 7200}, nil).Times(1)
	s.platform.EXPECT().FetchTicket(gomock.Any(), "atok", openplatform.TicketCard).
		Return(&openplatform.Ticket{Ticket: "cardticket", ExpiresIn: 7200}, nil).Times(1)

	for range 2 {
		tk, ok := s.broker.JSAPITicket(ctx, appID)
		s.True(ok)
		s.Equal("jsticket", tk)

		tk, ok = s.broker.CardTicket(ctx, appID)
		s.True(ok)
		s.Equal("cardticket", tk)
	}
	s.Equal(6600*time.Second, s.ttl(cache.AuthorizerKey(appID.String(), cache.KindCardTicket)))
}

func (s *BrokerSuite) TestDerivedTicketShortCircuits() {
	s.store.EXPECT().FindByAppID(gomock.Any(), testutil.TestAppID1).Return(nil, sentinel.ErrNotFound)
	// FetchTicket is not expected.

	_, ok := s.broker.JSAPITicket(context.Background(), testutil.TestAppID1)
	s.False(ok)
}

func (s *BrokerSuite) TestDerivedTicketUnknownKind() {
	_, ok := s.broker.DerivedTicket(context.Background(), testutil.TestAppID1, cache.KindComponentToken)
	s.False(ok)
}

func (s *BrokerSuite) TestRejectedAccessTokenIsEvicted() {
	ctx := context.Background()
	appID := testutil.TestAppID1
	key := cache.AuthorizerKey(appID.String(), cache.KindAccessToken)
	s.seed(key, "stale")
	s.platform.EXPECT().FetchTicket(gomock.Any(), "stale", openplatform.TicketJSAPI).
		Return(nil, &openplatform.FetchError{Category: openplatform.CategoryInvalidCredential, Code: 40001})

	_, ok := s.broker.JSAPITicket(ctx, appID)
	s.False(ok)

	_, cached, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.False(cached)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.AutomaticInvalidations.WithLabelValues(string(cache.KindAccessToken))))
}

func (s *BrokerSuite) TestConcurrentMissesShareOneFetch() {
	s.seedComponentToken()
	auth := testutil.NewAuthorizerBuilder().Build()

	s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil).Times(2)
	s.platform.EXPECT().FetchAuthorizerToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string, string) (*openplatform.AuthorizerToken, error) {
			time.Sleep(20 * time.Millisecond)
			return &openplatform.AuthorizerToken{AccessToken: "atok", ExpiresIn: 7200, RefreshToken: auth.RefreshToken}, nil
		}).Times(1)

	values := testutil.RunConcurrentValues(20, func(int) (string, bool) {
		return s.broker.AccessToken(context.Background(), auth.AppID)
	})
	s.Len(values, 20)
	for _, v := range values {
		s.Equal("atok", v)
	}
}

func (s *BrokerSuite) TestCallerCancellationDoesNotAbortFetch() {
	s.seed(cache.ComponentKey(componentAppID, cache.KindVerifyTicket), "ticket")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.platform.EXPECT().FetchComponentToken(gomock.Any(), "ticket").
		DoAndReturn(func(ctx context.Context, _ string) (*openplatform.ComponentToken, error) {
			s.NoError(ctx.Err())
			return &openplatform.ComponentToken{Token: "ctok", ExpiresIn: 7200}, nil
		})

	tok, ok := s.broker.ComponentToken(ctx)
	s.True(ok)
	s.Equal("ctok", tok)
}

func (s *BrokerSuite) TestRefreshProfile() {
	ctx := context.Background()
	serviceType := 2
	info := &openplatform.AuthorizerInfo{
		Authorizer: &openplatform.AuthorizerDetails{
			NickName:        "  Coffee  ",
			ServiceTypeInfo: &openplatform.TypeInfo{ID: serviceType},
		},
		Authorization: &openplatform.AuthorizationInfo{FuncInfo: funcInfo(1, 2, 3)},
	}

	s.Run("writes changed profile", func() {
		s.seedComponentToken()
		auth := testutil.NewAuthorizerBuilder().Build()
		s.platform.EXPECT().FetchAuthorizerInfo(gomock.Any(), "ctok", auth.AppID.String()).Return(info, nil)
		s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)
		s.store.EXPECT().Update(gomock.Any(), auth.AppID, gomock.Any(), s.now).
			DoAndReturn(func(_ context.Context, _ any, changes models.Changes, _ time.Time) error {
				s.Require().NotNil(changes.Profile)
				s.Equal("Coffee", changes.Profile.NickName)
				s.Equal(models.ProfileVersion, changes.Profile.Version)
				s.Nil(changes.FuncScopes, "scopes unchanged")
				return nil
			})

		updated, ok := s.broker.RefreshProfile(ctx, auth.AppID)
		s.True(ok)
		s.True(updated)
	})

	s.Run("identical profile is not written", func() {
		s.seedComponentToken()
		auth := testutil.NewAuthorizerBuilder().WithProfile(models.Profile{
			Version:       models.ProfileVersion,
			NickName:      "Coffee",
			ServiceTypeID: &serviceType,
		}).Build()
		s.platform.EXPECT().FetchAuthorizerInfo(gomock.Any(), gomock.Any(), gomock.Any()).Return(info, nil)
		s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)

		updated, ok := s.broker.RefreshProfile(ctx, auth.AppID)
		s.True(ok)
		s.False(updated)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.ProfileSyncs.WithLabelValues(credmetrics.ProfileUnchanged)))
	})

	s.Run("revoked authorizer stays revoked", func() {
		s.seedComponentToken()
		auth := testutil.NewAuthorizerBuilder().Unauthorized().Build()
		s.platform.EXPECT().FetchAuthorizerInfo(gomock.Any(), "ctok", auth.AppID.String()).Return(info, nil)
		s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)
		s.store.EXPECT().Update(gomock.Any(), auth.AppID, gomock.Any(), s.now).
			DoAndReturn(func(_ context.Context, _ any, changes models.Changes, _ time.Time) error {
				s.Nil(changes.Authorized)
				s.NotNil(changes.Profile)
				return nil
			})

		_, ok := s.broker.RefreshProfile(ctx, auth.AppID)
		s.True(ok)
	})

	s.Run("unknown authorizer", func() {
		s.seedComponentToken()
		s.platform.EXPECT().FetchAuthorizerInfo(gomock.Any(), gomock.Any(), gomock.Any()).Return(info, nil)
		s.store.EXPECT().FindByAppID(gomock.Any(), testutil.TestAppID2).Return(nil, sentinel.ErrNotFound)

		updated, ok := s.broker.RefreshProfile(ctx, testutil.TestAppID2)
		s.False(ok)
		s.False(updated)
	})

	s.Run("platform failure", func() {
		s.seedComponentToken()
		s.platform.EXPECT().FetchAuthorizerInfo(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &openplatform.FetchError{Category: openplatform.CategoryBadData})

		_, ok := s.broker.RefreshProfile(ctx, testutil.TestAppID1)
		s.False(ok)
	})
}

func (s *BrokerSuite) TestSaveVerifyTicket() {
	ctx := context.Background()
	s.True(dErrors.HasCode(s.broker.SaveVerifyTicket(ctx, ""), dErrors.CodeInvalidInput))

	s.Require().NoError(s.broker.SaveVerifyTicket(ctx, "ticket@@@2"))
	s.Equal(VerifyTicketTTL, s.ttl(cache.ComponentKey(componentAppID, cache.KindVerifyTicket)))
}

func (s *BrokerSuite) TestInvalidate() {
	ctx := context.Background()
	key := cache.AuthorizerKey(testutil.TestAppID1.String(), cache.KindJSAPITicket)
	s.seed(key, "jsticket")

	s.Require().NoError(s.broker.Invalidate(ctx, testutil.TestAppID1, cache.KindJSAPITicket))
	_, cached, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.False(cached)

	s.True(dErrors.HasCode(s.broker.Invalidate(ctx, testutil.TestAppID1, "bogus"), dErrors.CodeInvalidInput))
	s.True(dErrors.HasCode(s.broker.Invalidate(ctx, "", cache.KindAccessToken), dErrors.CodeInvalidInput))
	s.NoError(s.broker.Invalidate(ctx, "", cache.KindComponentToken))
}

func (s *BrokerSuite) TestRevoke() {
	ctx := context.Background()

	s.Run("marks unauthorized and evicts credentials", func() {
		auth := testutil.NewAuthorizerBuilder().Build()
		for _, kind := range authorizerKinds {
			s.seed(cache.AuthorizerKey(auth.AppID.String(), kind), "value")
		}
		s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)
		s.store.EXPECT().Update(gomock.Any(), auth.AppID, gomock.Any(), s.now).
			DoAndReturn(func(_ context.Context, _ any, changes models.Changes, _ time.Time) error {
				s.Require().NotNil(changes.Authorized)
				s.False(*changes.Authorized)
				return nil
			})

		s.Require().NoError(s.broker.Revoke(ctx, auth.AppID))
		for _, kind := range authorizerKinds {
			_, cached, err := s.cache.Get(ctx, cache.AuthorizerKey(auth.AppID.String(), kind))
			s.Require().NoError(err)
			s.False(cached, string(kind))
		}
	})

	s.Run("already unauthorized is not written", func() {
		auth := testutil.NewAuthorizerBuilder().Unauthorized().Build()
		s.store.EXPECT().FindByAppID(gomock.Any(), auth.AppID).Return(auth, nil)
		s.NoError(s.broker.Revoke(ctx, auth.AppID))
	})

	s.Run("unknown authorizer", func() {
		s.store.EXPECT().FindByAppID(gomock.Any(), testutil.TestAppID2).Return(nil, sentinel.ErrNotFound)
		s.True(dErrors.HasCode(s.broker.Revoke(ctx, testutil.TestAppID2), dErrors.CodeNotFound))
	})
}

func funcInfo(ids ...int) []openplatform.FuncInfo {
	out := make([]openplatform.FuncInfo, len(ids))
	for i, v := range ids {
		out[i].Category.ID = v
	}
	return out
}
