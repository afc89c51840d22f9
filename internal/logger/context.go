package logger

import (
	"context"
	"log/slog"
)

// ctxKey is a private key type so other packages cannot collide with or
// forge the correlation values.
type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID returns a new context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request ID from the context, empty if unset.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// contextHandler lifts the request ID out of the record's context onto the
// record itself, so service-level log calls correlate with their HTTP
// request without plumbing the ID through every call site.
type contextHandler struct {
	inner slog.Handler
}

func (c contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.inner.Enabled(ctx, level)
}

func (c contextHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if id := RequestID(ctx); id != "" {
		rec = rec.Clone()
		rec.AddAttrs(slog.String("request_id", id))
	}
	return c.inner.Handle(ctx, rec)
}

func (c contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{inner: c.inner.WithAttrs(attrs)}
}

func (c contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{inner: c.inner.WithGroup(name)}
}
