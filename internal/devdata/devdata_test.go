package devdata

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"
	"time"
)

func TestGenerateProducesOrderedTimestamps(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := Generate(rng, 5, now)

	if len(samples) != 5 {
		t.Fatalf("got %d samples", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i-1].Timestamp >= samples[i].Timestamp {
			t.Fatalf("expected strictly increasing timestamps at %d", i)
		}
	}
}

func TestMarshalNDJSONOneObjectPerLine(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := Generate(rng, 3, time.Now())

	out, err := MarshalNDJSON(samples)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	for _, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
	}
}
