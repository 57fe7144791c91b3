package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mikroscope/sidecar/internal/indexer"
	"github.com/mikroscope/sidecar/internal/store"
)

func newTestPipeline(t *testing.T, async bool) (*Pipeline, *store.Store, string) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	st.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { st.Close() })

	root := t.TempDir()
	ix := indexer.New(root, st)
	p := New(root, ix, 0, async, 20*time.Millisecond)
	return p, st, root
}

func TestAcceptSyncWritesAndIndexes(t *testing.T) {
	p, st, root := newTestPipeline(t, false)

	body := []byte(`[{"producerId":"spoofed","level":"INFO","event":"login"}]`)
	result, err := p.Accept(context.Background(), "frontend-web", body)
	if err != nil {
		t.Fatal(err)
	}
	if result.Accepted != 1 || result.Rejected != 0 || result.Queued {
		t.Fatalf("got %+v", result)
	}
	if result.ProducerID != "frontend-web" {
		t.Fatalf("got ProducerID=%q, want frontend-web", result.ProducerID)
	}

	date := time.Now().UTC().Format("2006-01-02")
	shard := filepath.Join(root, "ingest", "frontend-web", date+".ndjson")
	data, err := os.ReadFile(shard)
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]any
	if err := json.Unmarshal(data[:len(data)-1], &rec); err != nil {
		t.Fatal(err)
	}
	if rec["producerId"] != "frontend-web" {
		t.Fatalf("producer could forge producerId: %v", rec["producerId"])
	}

	stats, err := st.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.EntryCount != 1 {
		t.Fatalf("expected post-write indexing pass, got EntryCount=%d", stats.EntryCount)
	}
}

func TestAcceptRejectsNonObjectElements(t *testing.T) {
	p, _, _ := newTestPipeline(t, false)

	body := []byte(`[{"event":"ok"}, [1,2], "nope", 5]`)
	result, err := p.Accept(context.Background(), "p1", body)
	if err != nil {
		t.Fatal(err)
	}
	if result.Accepted != 1 || result.Rejected != 3 {
		t.Fatalf("got %+v", result)
	}
}

func TestAcceptEmptyBodyIsEmptyArray(t *testing.T) {
	p, _, _ := newTestPipeline(t, false)

	result, err := p.Accept(context.Background(), "p1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Accepted != 0 || result.Rejected != 0 {
		t.Fatalf("got %+v", result)
	}
}

func TestAcceptInvalidShapeErrors(t *testing.T) {
	p, _, _ := newTestPipeline(t, false)

	_, err := p.Accept(context.Background(), "p1", []byte(`"just a string"`))
	if err == nil {
		t.Fatal("expected an error for a bare-scalar top-level payload")
	}
	var shapeErr *ErrPayloadShape
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ErrPayloadShape, got %T: %v", err, err)
	}
}

func TestAcceptObjectWithoutLogsKeyErrors(t *testing.T) {
	p, _, _ := newTestPipeline(t, false)

	_, err := p.Accept(context.Background(), "p1", []byte(`{}`))
	if err == nil {
		t.Fatal("expected an error for an object payload with no logs array")
	}
	var shapeErr *ErrPayloadShape
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ErrPayloadShape, got %T: %v", err, err)
	}
}

func TestAcceptObjectWithLogsArrayWorks(t *testing.T) {
	p, _, _ := newTestPipeline(t, false)

	result, err := p.Accept(context.Background(), "p1", []byte(`{"logs":[{"event":"ok"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if result.Accepted != 1 {
		t.Fatalf("got %+v", result)
	}
}

func TestAcceptAsyncQueuesAndFlushes(t *testing.T) {
	p, st, _ := newTestPipeline(t, true)

	body := []byte(`[{"event":"login"}]`)
	result, err := p.Accept(context.Background(), "p1", body)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Queued {
		t.Fatal("expected queued=true in async mode")
	}

	stats := p.QueueStats()
	if stats.PendingRecords != 1 {
		t.Fatalf("got PendingRecords=%d, want 1", stats.PendingRecords)
	}

	time.Sleep(60 * time.Millisecond)

	stats = p.QueueStats()
	if stats.PendingRecords != 0 {
		t.Fatalf("expected queue drained after flush delay, got %+v", stats)
	}
	if stats.FlushedTotal != 1 {
		t.Fatalf("got FlushedTotal=%d, want 1", stats.FlushedTotal)
	}

	entryStats, err := st.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if entryStats.EntryCount != 1 {
		t.Fatalf("expected the flushed batch to be indexed, got EntryCount=%d", entryStats.EntryCount)
	}
}

func TestDrainFlushesOnShutdown(t *testing.T) {
	p, st, _ := newTestPipeline(t, true)

	if _, err := p.Accept(context.Background(), "p1", []byte(`[{"event":"a"}]`)); err != nil {
		t.Fatal(err)
	}

	p.Drain(context.Background())

	stats := p.QueueStats()
	if stats.PendingRecords != 0 {
		t.Fatalf("expected drain to flush all pending records, got %+v", stats)
	}

	entryStats, err := st.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if entryStats.EntryCount != 1 {
		t.Fatalf("expected drained batch to be indexed, got EntryCount=%d", entryStats.EntryCount)
	}
}
