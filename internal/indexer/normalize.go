package indexer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type normalized struct {
	timestamp string
	level     string
	event     string
	message   string
	isAudit   bool
}

// normalizeRecord derives the canonical entry fields from a parsed JSON
// object, per the timestamp/level/event/message/is_audit rules.
func normalizeRecord(rec map[string]any, sourceFile string) normalized {
	var n normalized

	n.timestamp = stringField(rec, "timestamp")
	if n.timestamp == "" {
		n.timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	n.level = strings.ToUpper(strings.TrimSpace(stringField(rec, "level")))
	if n.level == "" {
		n.level = "INFO"
	}

	n.event = stringField(rec, "event")
	if n.event == "" {
		n.event = stringField(rec, "message")
	}
	if n.event == "" {
		n.event = "log.event"
	}

	n.message = messageField(rec)
	n.isAudit = deriveIsAudit(rec, sourceFile)

	return n
}

func stringField(rec map[string]any, key string) string {
	v, ok := rec[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func messageField(rec map[string]any) string {
	v, ok := rec["message"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// deriveIsAudit follows the explicit-flag-wins, else-path-convention rule.
// The explicit flag is read from an "isAudit" top-level key, accepting both
// a JSON boolean and its stringified form ("true"/"false").
func deriveIsAudit(rec map[string]any, sourceFile string) bool {
	if v, ok := rec["isAudit"]; ok {
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b
			}
		}
	}
	return pathLooksLikeAudit(sourceFile)
}

func pathLooksLikeAudit(sourceFile string) bool {
	lower := strings.ToLower(sourceFile)
	for _, seg := range strings.Split(lower, "/") {
		if strings.Contains(seg, "audit") {
			return true
		}
	}
	return false
}

// scalarFields extracts the top-level string/number/bool/null entries of rec
// as their stringified form. Objects and arrays are skipped — they remain
// queryable only via data_json.
func scalarFields(rec map[string]any) map[string]string {
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case bool:
			out[k] = strconv.FormatBool(t)
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			// object or array: not indexed as a field.
		}
	}
	return out
}
