// Package store is the index store (C1): persistent relational storage of
// log entries and their extracted scalar fields, plus the queries,
// aggregates, retention pruning, and vacuum/reset operations layered over
// that schema.
package store

import (
	"database/sql"
	"fmt"

	"github.com/mikroscope/sidecar/internal/dbopen"
)

// Store is the index database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the index database at path, applies pragmas and
// schema, and migrates any pre-existing schema missing is_audit.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.migrateIsAudit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate is_audit: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Stats are the point-in-time store counters returned by GetStats.
type Stats struct {
	EntryCount       int64
	FieldCount       int64
	PageCount        int64
	PageSize         int64
	ApproxSizeBytes  int64
}

// GetStats returns current store statistics.
func (s *Store) GetStats() (Stats, error) {
	var st Stats
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM log_entries`).Scan(&st.EntryCount); err != nil {
		return st, fmt.Errorf("store: count entries: %w", err)
	}
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM log_fields`).Scan(&st.FieldCount); err != nil {
		return st, fmt.Errorf("store: count fields: %w", err)
	}
	if err := s.DB.QueryRow(`PRAGMA page_count`).Scan(&st.PageCount); err != nil {
		return st, fmt.Errorf("store: page_count: %w", err)
	}
	if err := s.DB.QueryRow(`PRAGMA page_size`).Scan(&st.PageSize); err != nil {
		return st, fmt.Errorf("store: page_size: %w", err)
	}
	st.ApproxSizeBytes = st.PageCount * st.PageSize
	return st, nil
}

// Reset wipes all entries and fields — used by the full-reindex flow.
func (s *Store) Reset() (entriesDeleted, fieldsDeleted int64, err error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("store: reset begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM log_fields`)
	if err != nil {
		return 0, 0, fmt.Errorf("store: reset fields: %w", err)
	}
	fieldsDeleted, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM log_entries`)
	if err != nil {
		return 0, 0, fmt.Errorf("store: reset entries: %w", err)
	}
	entriesDeleted, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("store: reset commit: %w", err)
	}
	return entriesDeleted, fieldsDeleted, nil
}

// Vacuum compacts storage. Call only after a prune removed rows or files
// were deleted — VACUUM is expensive and pointless otherwise.
func (s *Store) Vacuum() error {
	_, err := s.DB.Exec(`VACUUM`)
	if err != nil {
		return fmt.Errorf("store: vacuum: %w", err)
	}
	return nil
}
