package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikroscope/sidecar/internal/indexer"
)

// Pipeline is the ingest pipeline. It owns the logs-root NDJSON writer and,
// in async mode, the in-memory queue — the indexer is a shared collaborator
// (also driven by the auto-ingest ticker and the reindex endpoint), never
// owned by the pipeline.
type Pipeline struct {
	LogsRoot     string
	Indexer      *indexer.Indexer
	MaxBodyBytes int64
	Async        bool
	FlushDelay   time.Duration
	Logger       *slog.Logger

	q *queue
}

// New creates a Pipeline. maxBodyBytes <= 0 uses DefaultMaxBodyBytes.
func New(logsRoot string, ix *indexer.Indexer, maxBodyBytes int64, async bool, flushDelay time.Duration) *Pipeline {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Pipeline{
		LogsRoot:     logsRoot,
		Indexer:      ix,
		MaxBodyBytes: maxBodyBytes,
		Async:        async,
		FlushDelay:   flushDelay,
		Logger:       slog.Default(),
		q:            newQueue(),
	}
}

// ErrPayloadShape is returned when the body is neither a JSON array nor an
// object with a logs array.
type ErrPayloadShape struct{ inner error }

func (e *ErrPayloadShape) Error() string { return e.inner.Error() }
func (e *ErrPayloadShape) Unwrap() error { return e.inner }

// Accept parses and normalizes body, then persists it either synchronously
// or via the async queue, per Pipeline.Async.
func (p *Pipeline) Accept(ctx context.Context, producerID string, body []byte) (Result, error) {
	records, rejected, err := parsePayload(body)
	if err != nil {
		return Result{}, &ErrPayloadShape{inner: err}
	}

	now := time.Now().UTC()
	normalized := normalizeBatch(records, producerID, now.Format(time.RFC3339Nano))

	result := Result{
		Accepted:   len(normalized),
		Rejected:   rejected,
		ProducerID: producerID,
		ReceivedAt: now,
	}

	if p.Async {
		p.q.enqueue(producerID, normalized)
		p.q.scheduleFlush(p.FlushDelay, p.flush)
		result.Queued = true
		return result, nil
	}

	if err := p.writeAndIndex(ctx, producerID, now, normalized); err != nil {
		return Result{}, err
	}
	result.Queued = false
	return result, nil
}

func (p *Pipeline) writeAndIndex(ctx context.Context, producerID string, at time.Time, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}
	if err := appendBatch(p.LogsRoot, producerID, at, records); err != nil {
		return fmt.Errorf("ingest: write: %w", err)
	}
	if _, err := p.Indexer.Run(ctx, indexer.ModeIncremental); err != nil && err != indexer.ErrAlreadyRunning {
		return fmt.Errorf("ingest: post-write index: %w", err)
	}
	return nil
}

// flush drains the entire pending queue, merging each producer's records
// into a single batch per file, then runs one incremental indexing pass.
// A write failure re-queues that producer's records and reschedules.
func (p *Pipeline) flush(ctx context.Context) {
	p.q.setDraining(true)
	defer p.q.setDraining(false)

	batch, count := p.q.take()
	if len(batch) == 0 {
		return
	}

	now := time.Now().UTC()
	var failed bool
	var lastErr error

	for producerID, records := range batch {
		if err := appendBatch(p.LogsRoot, producerID, now, records); err != nil {
			p.Logger.Error("ingest: flush write failed", "producer", producerID, "error", err)
			p.q.requeue(producerID, records)
			failed = true
			lastErr = err
			continue
		}
	}

	if failed {
		p.q.recordFlush(0, lastErr.Error())
		p.q.scheduleFlush(p.FlushDelay, p.flush)
		return
	}

	if _, err := p.Indexer.Run(ctx, indexer.ModeIncremental); err != nil && err != indexer.ErrAlreadyRunning {
		p.Logger.Error("ingest: post-flush index failed", "error", err)
		p.q.recordFlush(count, err.Error())
		return
	}

	p.q.recordFlush(count, "")
}

// QueueStats reports the current queue state for /health.
func (p *Pipeline) QueueStats() QueueStats {
	return p.q.stats()
}

// Drain is called on graceful shutdown: cancel the pending flush timer,
// then flush whatever remains exactly once. Errors are logged, not raised.
func (p *Pipeline) Drain(ctx context.Context) {
	p.q.stopTimer()
	p.flush(ctx)
}
