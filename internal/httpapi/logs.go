package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/mikroscope/sidecar/internal/store"
)

// logEntryView is the wire shape for one log entry: data_json is embedded
// as the parsed record rather than a raw string.
type logEntryView struct {
	ID         int64           `json:"id"`
	Timestamp  string          `json:"timestamp"`
	Level      string          `json:"level"`
	Event      string          `json:"event"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	SourceFile string          `json:"sourceFile"`
	LineNumber int             `json:"lineNumber"`
}

func toLogEntryView(e store.LogEntry) logEntryView {
	return logEntryView{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		Level:      e.Level,
		Event:      e.Event,
		Message:    e.Message,
		Data:       json.RawMessage(e.DataJSON),
		SourceFile: e.SourceFile,
		LineNumber: e.LineNumber,
	}
}

func (d *Deps) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := parseLimit(r, defaultQueryLimit)
	cursor := r.URL.Query().Get("cursor")

	page, err := d.Query.QueryPage(filter, cursor, limit)
	if err != nil {
		d.logger().Error("httpapi: query page failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	entries := make([]logEntryView, len(page.Entries))
	for i, e := range page.Entries {
		entries[i] = toLogEntryView(e)
	}

	resp := map[string]any{
		"entries": entries,
		"hasMore": page.HasMore,
		"limit":   page.Limit,
	}
	if page.NextCursor != "" {
		resp["nextCursor"] = page.NextCursor
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Deps) handleAggregate(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	groupBy := r.URL.Query().Get("groupBy")
	groupField := r.URL.Query().Get("groupField")
	limit := parseLimit(r, 25)

	buckets, err := d.Query.Aggregate(filter, groupBy, groupField, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := map[string]any{"buckets": buckets, "groupBy": groupBy}
	if groupField != "" {
		resp["groupField"] = groupField
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
