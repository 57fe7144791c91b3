package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertEntry inserts a new entry if (source_file, line_number) is unseen,
// or returns the existing row's id with inserted=false. The insert is a
// single statement, so no external locking is needed for atomicity.
func (s *Store) UpsertEntry(in EntryInput) (id int64, inserted bool, err error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	row := s.DB.QueryRow(`
		INSERT INTO log_entries
			(timestamp, level, event, message, is_audit, data_json, source_file, line_number, indexed_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(source_file, line_number) DO NOTHING
		RETURNING id`,
		in.Timestamp, in.Level, in.Event, in.Message, boolToInt(in.IsAudit),
		in.DataJSON, in.SourceFile, in.LineNumber, now,
	)
	err = row.Scan(&id)
	if err == sql.ErrNoRows {
		err = s.DB.QueryRow(
			`SELECT id FROM log_entries WHERE source_file = ? AND line_number = ?`,
			in.SourceFile, in.LineNumber,
		).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("store: lookup existing entry: %w", err)
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: upsert entry: %w", err)
	}
	return id, true, nil
}

// UpsertField idempotently records a scalar field extracted from an entry.
func (s *Store) UpsertField(entryID int64, key, valueText string) error {
	_, err := s.DB.Exec(
		`INSERT INTO log_fields (entry_id, key, value_text) VALUES (?,?,?)
		 ON CONFLICT(entry_id, key, value_text) DO NOTHING`,
		entryID, key, valueText,
	)
	if err != nil {
		return fmt.Errorf("store: upsert field: %w", err)
	}
	return nil
}

// DeleteEntriesForSourceFile purges all rows for a source file — used when
// the indexer detects a rewrite-in-place. Field rows are deleted first so
// their count is observable (FK cascade would otherwise hide it).
func (s *Store) DeleteEntriesForSourceFile(path string) (entriesDeleted, fieldsDeleted int64, err error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("store: delete source file begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`DELETE FROM log_fields WHERE entry_id IN (SELECT id FROM log_entries WHERE source_file = ?)`,
		path,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("store: delete fields for source file: %w", err)
	}
	fieldsDeleted, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM log_entries WHERE source_file = ?`, path)
	if err != nil {
		return 0, 0, fmt.Errorf("store: delete entries for source file: %w", err)
	}
	entriesDeleted, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("store: delete source file commit: %w", err)
	}
	return entriesDeleted, fieldsDeleted, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
