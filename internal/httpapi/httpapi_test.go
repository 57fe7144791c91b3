package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mikroscope/sidecar/internal/alerting"
	"github.com/mikroscope/sidecar/internal/indexer"
	"github.com/mikroscope/sidecar/internal/ingest"
	"github.com/mikroscope/sidecar/internal/maintenance"
	"github.com/mikroscope/sidecar/internal/query"
	"github.com/mikroscope/sidecar/internal/store"
)

func newTestDeps(t *testing.T, auth AuthConfig) (*Deps, http.Handler) {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	st.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { st.Close() })

	logsRoot := t.TempDir()
	ix := indexer.New(logsRoot, st)
	pipeline := ingest.New(logsRoot, ix, 0, false, 0)
	mloop := maintenance.New(maintenance.Config{LogsRoot: logsRoot}, st)

	mgr, err := alerting.New(alerting.DefaultPolicy(), filepath.Join(t.TempDir(), "alert.json"), query.New(st), "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}

	d := &Deps{
		Store:       st,
		Query:       query.New(st),
		Indexer:     ix,
		Pipeline:    pipeline,
		Alerting:    mgr,
		Maintenance: mloop,
		Auth:        auth,
		StartedAt:   time.Now(),
		DBPath:      filepath.Join(t.TempDir(), "mikroscope.db"),
	}

	return d, NewRouter(d)
}

func TestHealthIsUnauthenticated(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["service"] != "mikroscope" {
		t.Fatalf("got body %+v", body)
	}
}

func TestAPIAuthPermissiveWhenUnconfigured(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAPIAuthRejectsMissingCredentials(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{BearerToken: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestAPIAuthAcceptsBearerToken(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{BearerToken: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestIngestDisabledWithoutProducerAuth(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewBufferString(`[{"event":"e"}]`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestIngestResolvesProducerIDFromBasicAuth(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{BasicUsername: "svc-a", BasicPassword: "pw"})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewBufferString(`[{"event":"e","producerId":"spoofed"}]`))
	req.SetBasicAuth("svc-a", "pw")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	var result ingest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.ProducerID != "svc-a" {
		t.Fatalf("got ProducerID=%q, want svc-a (anti-forgery)", result.ProducerID)
	}
}

func TestIngestReturns202WhenQueued(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	st.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { st.Close() })

	logsRoot := t.TempDir()
	ix := indexer.New(logsRoot, st)
	pipeline := ingest.New(logsRoot, ix, 0, true, time.Hour)
	mloop := maintenance.New(maintenance.Config{LogsRoot: logsRoot}, st)
	mgr, err := alerting.New(alerting.DefaultPolicy(), filepath.Join(t.TempDir(), "alert.json"), query.New(st), "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}
	d := &Deps{
		Store:       st,
		Query:       query.New(st),
		Indexer:     ix,
		Pipeline:    pipeline,
		Alerting:    mgr,
		Maintenance: mloop,
		Auth:        AuthConfig{},
		StartedAt:   time.Now(),
		DBPath:      filepath.Join(t.TempDir(), "mikroscope.db"),
	}
	handler := NewRouter(d)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewBufferString(`[{"event":"e"}]`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestIngestOversizedBodyReturns413(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	st.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { st.Close() })

	logsRoot := t.TempDir()
	ix := indexer.New(logsRoot, st)
	pipeline := ingest.New(logsRoot, ix, 16, false, 0)
	mloop := maintenance.New(maintenance.Config{LogsRoot: logsRoot}, st)
	mgr, err := alerting.New(alerting.DefaultPolicy(), filepath.Join(t.TempDir(), "alert.json"), query.New(st), "http://localhost:8080")
	if err != nil {
		t.Fatal(err)
	}
	d := &Deps{
		Store:       st,
		Query:       query.New(st),
		Indexer:     ix,
		Pipeline:    pipeline,
		Alerting:    mgr,
		Maintenance: mloop,
		Auth:        AuthConfig{BasicUsername: "svc-a", BasicPassword: "pw"},
		StartedAt:   time.Now(),
		DBPath:      filepath.Join(t.TempDir(), "mikroscope.db"),
	}
	handler := NewRouter(d)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewBufferString(`[{"event":"this body is way over the limit"}]`))
	req.SetBasicAuth("svc-a", "pw")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestIngestUnauthorizedWithWrongToken(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{IngestProducers: map[string]string{"tok-a": "svc-a"}})

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewBufferString(`[]`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestReindexReturnsReportAndReset(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/reindex", bytes.NewBufferString(`{"full":true}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["reset"] != true {
		t.Fatalf("got body %+v", body)
	}
	if _, ok := body["report"]; !ok {
		t.Fatalf("expected a report field, got %+v", body)
	}
}

func TestAggregateRejectsInvalidGroupBy(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/logs/aggregate?groupBy=bogus", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestAlertConfigRoundTrip(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{})

	putBody, _ := json.Marshal(map[string]any{"errorThreshold": 42})
	req := httptest.NewRequest(http.MethodPut, "/api/alerts/config", bytes.NewBuffer(putBody))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/alerts/config", nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, getReq)

	var body map[string]any
	if err := json.Unmarshal(getRec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	policy, ok := body["policy"].(map[string]any)
	if !ok {
		t.Fatalf("got body %+v", body)
	}
	if policy["errorThreshold"] != float64(42) {
		t.Fatalf("got policy %+v", policy)
	}
}

func TestTestWebhookRejectsUnknownField(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/test-webhook", bytes.NewBufferString(`{"bogus":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestCORSWildcardAllowsAnyOrigin(t *testing.T) {
	_, handler := newTestDeps(t, AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("got Access-Control-Allow-Origin=%q", got)
	}
}
