package alerting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestManagerCooldownSuppressesRepeatTrigger(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	seed := DefaultPolicy()
	seed.Enabled = true
	seed.WebhookURL = srv.URL
	seed.ErrorThreshold = 1
	seed.CooldownMs = 60_000

	path := filepath.Join(t.TempDir(), "alert-config.json")
	counter := fakeCounter{byLevel: map[string]int64{"ERROR": 5}, total: 5}

	mgr, err := New(seed, path, counter, "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}

	mgr.runCycle(context.Background())
	mgr.runCycle(context.Background())

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected exactly one delivery due to cooldown, got %d", got)
	}

	state := mgr.State()
	if state.Sent != 1 || state.Suppressed != 1 {
		t.Fatalf("got state %+v", state)
	}
}

func TestManagerUpdatePolicyPersists(t *testing.T) {
	seed := DefaultPolicy()
	path := filepath.Join(t.TempDir(), "nested", "alert-config.json")
	counter := fakeCounter{}

	mgr, err := New(seed, path, counter, "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}

	updated, err := mgr.UpdatePolicy(context.Background(), map[string]any{"errorThreshold": float64(99)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ErrorThreshold != 99 {
		t.Fatalf("got ErrorThreshold=%d, want 99", updated.ErrorThreshold)
	}

	reloaded, err := loadPolicyFile(path, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.ErrorThreshold != 99 {
		t.Fatalf("expected persisted policy to round-trip, got %+v", reloaded)
	}
}

func TestTestWebhookUsesOverride(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	seed := DefaultPolicy()
	path := filepath.Join(t.TempDir(), "alert-config.json")
	mgr, err := New(seed, path, fakeCounter{}, "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}

	override := srv.URL + "/hook"
	sentAt, targetURL, err := mgr.TestWebhook(context.Background(), &override)
	if err != nil {
		t.Fatal(err)
	}
	if targetURL != override {
		t.Fatalf("got targetURL=%q, want %q", targetURL, override)
	}
	if sentAt.IsZero() {
		t.Fatal("expected non-zero sentAt")
	}
	if gotPath != "/hook" {
		t.Fatalf("got path=%q", gotPath)
	}
}

func TestTestWebhookNoTargetErrors(t *testing.T) {
	seed := DefaultPolicy()
	path := filepath.Join(t.TempDir(), "alert-config.json")
	mgr, err := New(seed, path, fakeCounter{}, "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := mgr.TestWebhook(context.Background(), nil); err == nil {
		t.Fatal("expected error when no webhookUrl is configured or overridden")
	}
}

func TestManagerRetriesRetryableStatus(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := deliver(context.Background(), srv.URL, WebhookPayload{Source: "mikroscope", Rule: "manual_test"},
		time.Second, 3, 5*time.Millisecond, true)
	if err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&attempts) < 2 {
		t.Fatalf("expected a retry after 503, got %d attempts", attempts)
	}
}
