package ingest

import (
	"encoding/json"
	"fmt"
)

// parsePayload accepts either a top-level JSON array of objects, or an
// object with a "logs" array, per the ingest wire contract. Any other shape
// is rejected with an error the caller translates to 400. rejected counts
// elements that parsed but were not JSON objects (arrays, primitives).
func parsePayload(body []byte) (records []map[string]any, rejected int, err error) {
	trimmed := trimLeadingSpace(body)
	if len(trimmed) == 0 {
		return nil, 0, nil
	}

	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, 0, fmt.Errorf("ingest: invalid JSON array: %w", err)
		}
		records = decodeElements(arr)
		return records, len(arr) - len(records), nil
	}

	if trimmed[0] == '{' {
		var wrapper struct {
			Logs *[]json.RawMessage `json:"logs"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, 0, fmt.Errorf("ingest: invalid JSON object: %w", err)
		}
		if wrapper.Logs == nil {
			return nil, 0, fmt.Errorf("ingest: object payload must have a logs array")
		}
		records = decodeElements(*wrapper.Logs)
		return records, len(*wrapper.Logs) - len(records), nil
	}

	return nil, 0, fmt.Errorf("ingest: payload must be a JSON array or an object with a logs array")
}

// decodeElements returns one entry per element that successfully decodes to
// a JSON object. Non-object elements (arrays, primitives) are simply
// dropped from the returned slice — the caller accounts for the difference
// between len(raw) and len(result) as rejected.
func decodeElements(raw []json.RawMessage) []map[string]any {
	out := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		var obj map[string]any
		if err := json.Unmarshal(r, &obj); err != nil || obj == nil {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return b[i:]
		}
	}
	return nil
}

// normalizeBatch copies each accepted record, stamping the server-derived
// producerId and a shared ingestedAt timestamp. The producer cannot forge
// producerId — this overwrite is unconditional.
func normalizeBatch(records []map[string]any, producerID, ingestedAtISO string) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, rec := range records {
		copied := make(map[string]any, len(rec)+2)
		for k, v := range rec {
			copied[k] = v
		}
		copied["producerId"] = producerID
		copied["ingestedAt"] = ingestedAtISO
		out[i] = copied
	}
	return out
}
