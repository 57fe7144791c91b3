// Package httpapi is the HTTP surface (C7): route wiring, query-parameter
// parsing, auth resolution, and the handlers for ingest, query, reindex,
// and alerting configuration.
package httpapi

import (
	"log/slog"
	"time"

	"github.com/mikroscope/sidecar/internal/alerting"
	"github.com/mikroscope/sidecar/internal/indexer"
	"github.com/mikroscope/sidecar/internal/ingest"
	"github.com/mikroscope/sidecar/internal/maintenance"
	"github.com/mikroscope/sidecar/internal/query"
	"github.com/mikroscope/sidecar/internal/store"
)

// AuthConfig holds the API-wide and ingest-specific auth settings.
type AuthConfig struct {
	// BearerToken, when non-empty, is the single token accepted by the
	// general API auth rule.
	BearerToken string
	// BasicUsername/BasicPassword, when both non-empty, are the single
	// credential pair accepted by the general API auth rule.
	BasicUsername string
	BasicPassword string

	// IngestProducers maps a bearer token to the producer id it resolves
	// to for POST /api/ingest. A nil/empty map disables token-based
	// producer resolution (but basic auth above still applies).
	IngestProducers map[string]string
}

// Deps wires every collaborator the HTTP surface depends on. It is built
// once at startup by the server orchestrator.
type Deps struct {
	Store       *store.Store
	Query       *query.Service
	Indexer     *indexer.Indexer
	Pipeline    *ingest.Pipeline
	Alerting    *alerting.Manager
	Maintenance *maintenance.Loop

	Auth            AuthConfig
	CORSAllowOrigin string // "*" or a comma-separated allowlist

	ServiceURL string
	StartedAt  time.Time
	Version    string

	DBPath       string
	MinFreeBytes uint64

	Logger *slog.Logger
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
