package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextHandlerAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(contextHandler{inner: slog.NewJSONHandler(&buf, nil)})

	ctx := WithRequestID(context.Background(), "req-42")
	log.InfoContext(ctx, "hello")
	if !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Fatalf("request id not attached: %s", buf.String())
	}

	buf.Reset()
	log.Info("no context")
	if strings.Contains(buf.String(), "request_id") {
		t.Fatalf("unexpected request id on bare record: %s", buf.String())
	}
}
