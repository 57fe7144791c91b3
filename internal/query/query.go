// Package query is the query service (C4): a thin layer over the index
// store that clamps limits, encodes/decodes the opaque pagination cursor,
// and validates aggregate grouping options.
package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mikroscope/sidecar/internal/store"
)

// Service adapts internal/store for HTTP-facing callers.
type Service struct {
	Store *store.Store
}

// New creates a Service backed by st.
func New(st *store.Store) *Service {
	return &Service{Store: st}
}

// PageResult is QueryPage's response, with the next cursor already encoded.
type PageResult struct {
	Entries    []store.LogEntry
	HasMore    bool
	Limit      int
	NextCursor string
}

// QueryPage clamps limit, decodes cursor (ignoring malformed input — it is
// treated identically to no cursor, the first page), and encodes the next
// page's cursor from the last row returned when HasMore is true.
func (svc *Service) QueryPage(filter store.Filter, cursor string, limit int) (PageResult, error) {
	var c *store.Cursor
	if cursor != "" {
		if decoded, ok := decodeCursor(cursor); ok {
			c = decoded
		}
	}

	page, err := svc.Store.QueryPage(filter, c, limit)
	if err != nil {
		return PageResult{}, err
	}

	result := PageResult{Entries: page.Entries, HasMore: page.HasMore, Limit: page.Limit}
	if page.HasMore && len(page.Entries) > 0 {
		last := page.Entries[len(page.Entries)-1]
		result.NextCursor = encodeCursor(store.Cursor{ID: last.ID, Timestamp: last.Timestamp})
	}
	return result, nil
}

// Aggregate validates groupBy/groupField and clamps limit before delegating.
func (svc *Service) Aggregate(filter store.Filter, groupBy, groupField string, limit int) ([]store.Bucket, error) {
	gb := store.GroupBy(groupBy)
	switch gb {
	case store.GroupByLevel, store.GroupByEvent, store.GroupByField, store.GroupByCorrelation:
	default:
		return nil, fmt.Errorf("query: invalid group_by %q", groupBy)
	}
	if gb == store.GroupByField && groupField == "" {
		return nil, fmt.Errorf("query: group_field is required when group_by=field")
	}
	return svc.Store.Aggregate(filter, gb, groupField, limit)
}

// Count delegates to the store — used by the alerting manager's threshold rules.
func (svc *Service) Count(filter store.Filter) (int64, error) {
	return svc.Store.Count(filter)
}

func encodeCursor(c store.Cursor) string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (*store.Cursor, bool) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	var c store.Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, false
	}
	return &c, true
}
