package store

import (
	"fmt"
	"strings"
)

// Aggregate groups matching entries by the requested dimension and returns
// buckets ordered by count DESC, key ASC, limited to limit (clamped to
// [1, 1000], default 25).
func (s *Store) Aggregate(filter Filter, groupBy GroupBy, groupField string, limit int) ([]Bucket, error) {
	limit = clampLimit(limit, defaultAggregateLimit)

	switch groupBy {
	case GroupByLevel:
		return s.aggregateColumn(filter, "e.level", limit)
	case GroupByEvent:
		return s.aggregateColumn(filter, "e.event", limit)
	case GroupByField:
		return s.aggregateField(filter, groupField, limit)
	case GroupByCorrelation:
		return s.aggregateCorrelation(filter, limit)
	default:
		return nil, fmt.Errorf("store: unsupported group_by %q", groupBy)
	}
}

func (s *Store) aggregateColumn(filter Filter, column string, limit int) ([]Bucket, error) {
	where, args := buildWhere(filter)
	joinFields := filter.FieldKey != "" && filter.FieldValue != ""

	var q strings.Builder
	fmt.Fprintf(&q, "SELECT %s AS bucket_key, COUNT(DISTINCT e.id) AS bucket_count FROM log_entries e", column)
	if joinFields {
		q.WriteString(" JOIN log_fields f ON f.entry_id = e.id")
	}
	if len(where) > 0 {
		q.WriteString(" WHERE ")
		q.WriteString(strings.Join(where, " AND "))
	}
	q.WriteString(" GROUP BY bucket_key ORDER BY bucket_count DESC, bucket_key ASC LIMIT ?")
	args = append(args, limit)

	return s.scanBuckets(q.String(), args)
}

func (s *Store) aggregateField(filter Filter, groupField string, limit int) ([]Bucket, error) {
	if groupField == "" {
		return nil, fmt.Errorf("store: group_field is required for group_by=field")
	}
	where, args := buildWhere(filter)

	var q strings.Builder
	q.WriteString(`SELECT COALESCE(gf.value_text, '(missing)') AS bucket_key, COUNT(DISTINCT e.id) AS bucket_count
		FROM log_entries e
		LEFT JOIN log_fields gf ON gf.entry_id = e.id AND gf.key = ?`)
	groupArgs := []any{groupField}

	if filter.FieldKey != "" && filter.FieldValue != "" {
		q.WriteString(" JOIN log_fields f ON f.entry_id = e.id")
	}
	if len(where) > 0 {
		q.WriteString(" WHERE ")
		q.WriteString(strings.Join(where, " AND "))
	}
	q.WriteString(" GROUP BY bucket_key ORDER BY bucket_count DESC, bucket_key ASC LIMIT ?")

	allArgs := append(groupArgs, args...)
	allArgs = append(allArgs, limit)

	return s.scanBuckets(q.String(), allArgs)
}

func (s *Store) aggregateCorrelation(filter Filter, limit int) ([]Bucket, error) {
	where, args := buildWhere(filter)

	var q strings.Builder
	q.WriteString(`SELECT COALESCE(cid.value_text, rid.value_text, '(missing)') AS bucket_key, COUNT(DISTINCT e.id) AS bucket_count
		FROM log_entries e
		LEFT JOIN log_fields cid ON cid.entry_id = e.id AND cid.key = 'correlationId'
		LEFT JOIN log_fields rid ON rid.entry_id = e.id AND rid.key = 'requestId'`)

	if filter.FieldKey != "" && filter.FieldValue != "" {
		q.WriteString(" JOIN log_fields f ON f.entry_id = e.id")
	}
	if len(where) > 0 {
		q.WriteString(" WHERE ")
		q.WriteString(strings.Join(where, " AND "))
	}
	q.WriteString(" GROUP BY bucket_key ORDER BY bucket_count DESC, bucket_key ASC LIMIT ?")
	args = append(args, limit)

	return s.scanBuckets(q.String(), args)
}

func (s *Store) scanBuckets(query string, args []any) ([]Bucket, error) {
	rows, err := s.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: aggregate: %w", err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, fmt.Errorf("store: scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
