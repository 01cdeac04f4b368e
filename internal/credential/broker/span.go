package broker

import (
	"context"

	"credgate/pkg/platform/tracer"
)

type spanKey struct{}

func withSpan(ctx context.Context, sp tracer.Span) context.Context {
	return context.WithValue(ctx, spanKey{}, sp)
}

// spanFrom returns the innermost broker span, or a span that records nothing.
func spanFrom(ctx context.Context) tracer.Span {
	if sp, ok := ctx.Value(spanKey{}).(tracer.Span); ok {
		return sp
	}
	_, sp := tracer.NewNoop().Start(ctx, "")
	return sp
}
