package nats

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"
)

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Bus {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	b, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return b
}

// uniqueSubject returns a test subject under the "gate." prefix, which the
// SENTINEL stream captures (gate.>).
func uniqueSubject(t *testing.T) string {
	t.Helper()
	return "gate.test." + t.Name()
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := testConnect(t)
	subject := uniqueSubject(t)

	type payload struct {
		SessionID string `json:"session_id"`
		Verdict   string `json:"verdict"`
	}
	want := payload{SessionID: "sess-1", Verdict: "deny"}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var (
		mu       sync.Mutex
		received *payload
		done     = make(chan struct{})
		once     sync.Once
	)

	stop, err := b.Subscribe(context.Background(), subject, func(subj string, d []byte) error {
		var got payload
		if err := json.Unmarshal(d, &got); err != nil {
			return err
		}
		mu.Lock()
		received = &got
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := b.Publish(context.Background(), subject, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	mu.Lock()
	defer mu.Unlock()

	if received == nil {
		t.Fatal("handler was not called")
	}
	if received.Verdict != want.Verdict {
		t.Errorf("got %q, want %q", received.Verdict, want.Verdict)
	}
}

func TestBus_CacheBucket(t *testing.T) {
	b := testConnect(t)

	bucket := "test-kv-" + t.Name()
	ctx := context.Background()

	kv, err := b.CacheBucket(ctx, bucket, 30*time.Second)
	if err != nil {
		t.Fatalf("CacheBucket: %v", err)
	}

	if _, err := kv.Put(ctx, "sess-1", []byte(`{"confidence":40}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, err := kv.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Value()) != `{"confidence":40}` {
		t.Errorf("value = %q", string(entry.Value()))
	}

	if err := kv.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, "sess-1"); err == nil {
		t.Error("expected error after delete, got nil")
	}
}
