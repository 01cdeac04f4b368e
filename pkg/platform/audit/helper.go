package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Emitter persists audit events. Satisfied by InMemoryStore.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Logger provides structured audit logging with optional event emission.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
	requestID  func(context.Context) string
	now        func() time.Time
}

type Option func(*Logger)

// WithRequestID sets how the request id is read from a context.
func WithRequestID(fn func(context.Context) string) Option {
	return func(l *Logger) {
		l.requestID = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates an audit logger. emitter may be nil.
func NewLogger(textLogger *slog.Logger, emitter Emitter, opts ...Option) *Logger {
	l := &Logger{
		textLogger: textLogger,
		emitter:    emitter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log writes event to the text log and emits it. attributes are key/value
// pairs; "appid" and "subject" are lifted onto the Event, the rest go to
// Detail.
//
//	logger.Log(ctx, audit.EventRefreshTokenRotated, "appid", appID)
//
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event AuditEvent, attributes ...any) {
	if l == nil {
		return
	}
	requestID := ""
	if l.requestID != nil {
		requestID = l.requestID(ctx)
	}
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}

	if l.textLogger != nil {
		args := append(attributes, "event", event.String(), "log_type", "audit")
		l.textLogger.InfoContext(ctx, event.String(), args...)
	}

	if l.emitter == nil {
		return
	}
	ev := Event{
		Timestamp: l.now(),
		Action:    event.String(),
		RequestID: requestID,
	}
	for i := 0; i+1 < len(attributes); i += 2 {
		key, ok := attributes[i].(string)
		if !ok || key == "request_id" {
			continue
		}
		value := fmt.Sprint(attributes[i+1])
		switch key {
		case "appid":
			ev.AppID = value
		case "subject":
			ev.Subject = value
		default:
			if ev.Detail == nil {
				ev.Detail = make(map[string]string)
			}
			ev.Detail[key] = value
		}
	}
	if err := l.emitter.Emit(ctx, ev); err != nil && l.textLogger != nil {
		l.textLogger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"event", event.String(),
		)
	}
}
