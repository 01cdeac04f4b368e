// Package jssdk builds signed JS-SDK configurations for authorizer web pages.
package jssdk

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"credgate/internal/signing"
	id "credgate/pkg/domain"
)

// TicketSource provides the JS-SDK ticket of an authorizer.
type TicketSource interface {
	JSAPITicket(ctx context.Context, appID id.AppID) (string, bool)
}

// Config is the object passed to wx.config on the page.
type Config struct {
	AppID     string `json:"appId"`
	Timestamp int64  `json:"timestamp"`
	NonceStr  string `json:"nonceStr"`
	Signature string `json:"signature"`
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

// Config signs a configuration for the page at pageURL. The fragment is
// stripped before signing.
func (s *Service) Config(ctx context.Context, appID id.AppID, pageURL string) (Config, bool) {
	ticket, ok := s.tickets.JSAPITicket(ctx, appID)
	if !ok {
		return Config{}, false
	}
	nonce, err := s.nonce(signing.NonceLength)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate nonce", "error", err)
		return Config{}, false
	}
	if i := strings.IndexByte(pageURL, '#'); i >= 0 {
		pageURL = pageURL[:i]
	}
	ts := s.now().Unix()
	return Config{
		AppID:     appID.String(),
		Timestamp: ts,
		NonceStr:  nonce,
		Signature: signing.JSAPISignature(ticket, nonce, strconv.FormatInt(ts, 10), pageURL),
	}, true
}
