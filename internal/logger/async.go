package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

// nopCloser is a no-op Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// defaultBuffer is used when the configured buffer size is missing or
// nonsensical.
const defaultBuffer = 1024

// entry pairs a record with the handler that accepted it, so records
// enqueued through a WithAttrs or WithGroup derivative keep their
// attributes when the shared drain goroutine serializes them.
type entry struct {
	h   slog.Handler
	rec slog.Record
}

// AsyncHandler decouples record emission from serialization with a buffered
// channel drained by one goroutine. Gate checks log on the hot path; a slow
// stdout must not stretch the sub-100ms budget.
type AsyncHandler struct {
	inner   slog.Handler
	ch      chan entry
	done    chan struct{}
	dropped *atomic.Int64
}

// NewAsyncHandler creates an AsyncHandler with the given channel capacity
// and starts its drain goroutine.
func NewAsyncHandler(inner slog.Handler, buffer int) *AsyncHandler {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	h := &AsyncHandler{
		inner:   inner,
		ch:      make(chan entry, buffer),
		done:    make(chan struct{}),
		dropped: &atomic.Int64{},
	}
	go h.drain()
	return h
}

func (h *AsyncHandler) drain() {
	defer close(h.done)
	for e := range h.ch {
		_ = e.h.Handle(context.Background(), e.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record. Drops if the channel is full; losing a log
// line beats blocking a gate decision.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.ch <- entry{h: h.inner, rec: rec}:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a derived handler sharing the channel and drain
// goroutine but wrapping the attributed inner handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithAttrs(attrs),
		ch:      h.ch,
		done:    h.done,
		dropped: h.dropped,
	}
}

// WithGroup returns a derived handler sharing the channel and drain
// goroutine but wrapping the grouped inner handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{
		inner:   h.inner.WithGroup(name),
		ch:      h.ch,
		done:    h.done,
		dropped: h.dropped,
	}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops accepting records and blocks until the drain goroutine has
// flushed everything already enqueued. Only the root handler may be closed.
func (h *AsyncHandler) Close() {
	close(h.ch)
	<-h.done
}
