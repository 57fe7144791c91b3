package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mikroscope/sidecar/internal/indexer"
)

type reindexRequest struct {
	Full bool `json:"full"`
}

// handleReindex triggers an on-demand indexing pass. An empty body, or a
// body without "full", runs an incremental pass; {"full":true} first wipes
// the store and clears the indexer's cursors, then runs a full re-scan of
// every source file.
func (d *Deps) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if body, err := io.ReadAll(r.Body); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	mode := indexer.ModeIncremental
	if req.Full {
		if _, _, err := d.Store.Reset(); err != nil {
			d.logger().Error("httpapi: reindex reset failed", "error", err)
			writeError(w, http.StatusInternalServerError, "reindex failed")
			return
		}
		d.Indexer.ResetIncrementalState()
		mode = indexer.ModeFull
	}

	report, err := d.Indexer.Run(r.Context(), mode)
	if err != nil {
		if errors.Is(err, indexer.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "an indexing pass is already running")
			return
		}
		d.logger().Error("httpapi: reindex failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reindex failed")
		return
	}

	// reset reports whether this pass discarded prior incremental cursors
	// and re-scanned every source file from offset 0.
	writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"reset":  req.Full,
	})
}
