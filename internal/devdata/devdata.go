// Package devdata generates sample NDJSON log lines for local smoke
// testing of the ingest and query paths, without needing a real producer.
package devdata

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

var levels = []string{"DEBUG", "INFO", "INFO", "INFO", "WARN", "ERROR"}
var events = []string{"request.start", "request.complete", "job.run", "cache.miss", "db.query", "auth.failed"}

// Sample is a generated record, already normalized enough to pass through
// the ingest pipeline unchanged.
type Sample struct {
	Timestamp     string `json:"timestamp"`
	Level         string `json:"level"`
	Event         string `json:"event"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	DurationMs    int    `json:"durationMs"`
}

// Generate returns n sample records seeded from rng, timestamped
// backwards from now at roughly one-second intervals.
func Generate(rng *rand.Rand, n int, now time.Time) []Sample {
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		ts := now.Add(-time.Duration(n-i) * time.Second)
		level := levels[rng.Intn(len(levels))]
		event := events[rng.Intn(len(events))]
		samples[i] = Sample{
			Timestamp:     ts.UTC().Format(time.RFC3339Nano),
			Level:         level,
			Event:         event,
			Message:       fmt.Sprintf("%s: sample record %d", event, i),
			CorrelationID: fmt.Sprintf("corr-%d", rng.Intn(20)),
			RequestID:     fmt.Sprintf("req-%d", i),
			DurationMs:    rng.Intn(500),
		}
	}
	return samples
}

// MarshalNDJSON renders samples as newline-delimited JSON, one object per
// line, ready to append to a producer's shard file.
func MarshalNDJSON(samples []Sample) ([]byte, error) {
	var buf []byte
	for _, s := range samples {
		line, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return buf, nil
}
