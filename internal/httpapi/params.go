package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/mikroscope/sidecar/internal/store"
)

const defaultQueryLimit = 100

// parseLimit reads "limit", defaulting and clamping to [1, 1000].
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > 1000 {
		return 1000
	}
	return n
}

// parseAuditFlag reads "audit" as a tri-state: nil means unset, matching
// store.Filter.Audit's "no filter" sentinel.
func parseAuditFlag(r *http.Request) (*bool, error) {
	raw := r.URL.Query().Get("audit")
	if raw == "" {
		return nil, nil
	}
	switch raw {
	case "true", "1":
		v := true
		return &v, nil
	case "false", "0":
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("invalid audit value %q: expected true|false|1|0", raw)
	}
}

// parseFilter builds a store.Filter from the common query-string
// parameters shared by /api/logs and /api/logs/aggregate.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()

	audit, err := parseAuditFlag(r)
	if err != nil {
		return store.Filter{}, err
	}

	fieldKey := q.Get("field")
	fieldValue := q.Get("value")
	if (fieldKey == "") != (fieldValue == "") {
		return store.Filter{}, fmt.Errorf("field and value must be supplied together")
	}

	return store.Filter{
		From:       q.Get("from"),
		To:         q.Get("to"),
		Level:      q.Get("level"),
		Audit:      audit,
		FieldKey:   fieldKey,
		FieldValue: fieldValue,
	}, nil
}
