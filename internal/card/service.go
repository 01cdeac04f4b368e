// Package card builds the signed parameter sets the WeChat card JS API expects.
package card

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"credgate/internal/signing"
	id "credgate/pkg/domain"
)

const signTypeSHA1 = "SHA1"

// TicketSource provides the card API ticket of an authorizer.
type TicketSource interface {
	CardTicket(ctx context.Context, appID id.AppID) (string, bool)
}

type Service struct {
	tickets TicketSource
	logger  *slog.Logger
	now     func() time.Time
	nonce   func(n int) (string, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithNonce replaces the random nonce source (tests).
func WithNonce(fn func(n int) (string, error)) Option {
	return func(s *Service) {
		s.nonce = fn
	}
}

func New(tickets TicketSource, opts ...Option) *Service {
	s := &Service{
		tickets: tickets,
		logger:  slog.Default(),
		now:     time.Now,
		nonce:   signing.Nonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddCardParams returns the parameters for wx.addCard. code and openID are
// included only when non-empty. ok is false when no card ticket is available.
func (s *Service) AddCardParams(ctx context.Context, appID id.AppID, cardID, code, openID string) (map[string]string, bool) {
	nonce, ok := s.newNonce(ctx)
	if !ok {
		return nil, false
	}
	params := map[string]string{
		"cardId":    cardID,
		"timestamp": s.timestamp(),
		"nonce_str": nonce,
	}
	setIfPresent(params, "code", code)
	setIfPresent(params, "openid", openID)

	ticket, ok := s.tickets.CardTicket(ctx, appID)
	if !ok {
		return nil, false
	}
	params["signature"] = signing.Sign(params, ticket)
	return params, true
}

// ChooseCardParams returns the parameters for wx.chooseCard. The optional
// filters are included only when non-empty.
func (s *Service) ChooseCardParams(ctx context.Context, appID id.AppID, shopID, cardType, cardID string) (map[string]string, bool) {
	nonce, ok := s.newNonce(ctx)
	if !ok {
		return nil, false
	}
	params := map[string]string{
		"appId":     appID.String(),
		"timestamp": s.timestamp(),
		"nonceStr":  nonce,
	}
	setIfPresent(params, "shopId", shopID)
	setIfPresent(params, "cardType", cardType)
	setIfPresent(params, "cardId", cardID)

	ticket, ok := s.tickets.CardTicket(ctx, appID)
	if !ok {
		return nil, false
	}
	// signType is not part of the signed set.
	params["cardSign"] = signing.Sign(params, ticket)
	params["signType"] = signTypeSHA1
	return params, true
}

func (s *Service) timestamp() string {
	return strconv.FormatInt(s.now().Unix(), 10)
}

func (s *Service) newNonce(ctx context.Context) (string, bool) {
	nonce, err := s.nonce(signing.NonceLength)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate nonce", "error", err)
		return "", false
	}
	return nonce, true
}

func setIfPresent(params map[string]string, key, value string) {
	if value != "" {
		params[key] = value
	}
}
