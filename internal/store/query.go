package store

import (
	"fmt"
	"strings"
)

// QueryPage returns one page of entries ordered by (timestamp DESC, id
// DESC), optionally starting after cursor. A malformed or absent cursor is
// treated identically — the first page. limit is clamped to [1, 1000].
func (s *Store) QueryPage(filter Filter, cursor *Cursor, limit int) (Page, error) {
	limit = clampLimit(limit, defaultLimit)

	where, args := buildWhere(filter)
	if cursor != nil {
		where = append(where, "(timestamp < ? OR (timestamp = ? AND id < ?))")
		args = append(args, cursor.Timestamp, cursor.Timestamp, cursor.ID)
	}

	joinFields := filter.FieldKey != "" && filter.FieldValue != ""

	var query strings.Builder
	query.WriteString(`SELECT e.id, e.timestamp, e.level, e.event, e.message, e.is_audit, e.data_json, e.source_file, e.line_number, e.indexed_at FROM log_entries e`)
	if joinFields {
		query.WriteString(` JOIN log_fields f ON f.entry_id = e.id`)
	}
	if len(where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(where, " AND "))
	}
	query.WriteString(" ORDER BY e.timestamp DESC, e.id DESC LIMIT ?")
	args = append(args, limit+1)

	rows, err := s.DB.Query(query.String(), args...)
	if err != nil {
		return Page{}, fmt.Errorf("store: query page: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var isAudit int
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Event, &e.Message, &isAudit, &e.DataJSON, &e.SourceFile, &e.LineNumber, &e.IndexedAt); err != nil {
			return Page{}, fmt.Errorf("store: scan entry: %w", err)
		}
		e.IsAudit = isAudit != 0
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("store: query page rows: %w", err)
	}

	hasMore := false
	if len(entries) > limit {
		hasMore = true
		entries = entries[:limit]
	}

	return Page{Entries: entries, HasMore: hasMore, Limit: limit}, nil
}

// Count returns the number of entries matching filter — used by the
// alerting manager's threshold rules.
func (s *Store) Count(filter Filter) (int64, error) {
	where, args := buildWhere(filter)
	joinFields := filter.FieldKey != "" && filter.FieldValue != ""

	var query strings.Builder
	query.WriteString(`SELECT COUNT(DISTINCT e.id) FROM log_entries e`)
	if joinFields {
		query.WriteString(` JOIN log_fields f ON f.entry_id = e.id`)
	}
	if len(where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(where, " AND "))
	}

	var n int64
	if err := s.DB.QueryRow(query.String(), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// buildWhere translates a Filter into WHERE clause fragments and their
// positional args. Field filters join against log_fields under alias f.
func buildWhere(filter Filter) ([]string, []any) {
	var where []string
	var args []any

	if filter.From != "" {
		where = append(where, "e.timestamp >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where = append(where, "e.timestamp <= ?")
		args = append(args, filter.To)
	}
	if filter.Level != "" {
		where = append(where, "e.level = ?")
		args = append(args, strings.ToUpper(filter.Level))
	}
	if filter.Audit != nil {
		where = append(where, "e.is_audit = ?")
		args = append(args, boolToInt(*filter.Audit))
	}
	if filter.FieldKey != "" && filter.FieldValue != "" {
		where = append(where, "f.key = ?", "f.value_text = ?")
		args = append(args, filter.FieldKey, filter.FieldValue)
	}

	return where, args
}
