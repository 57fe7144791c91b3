package store

// Schema contains the complete DDL for the index store.
const Schema = `
CREATE TABLE IF NOT EXISTS log_entries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   TEXT NOT NULL,
    level       TEXT NOT NULL,
    event       TEXT NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    is_audit    INTEGER NOT NULL DEFAULT 0,
    data_json   TEXT NOT NULL,
    source_file TEXT NOT NULL,
    line_number INTEGER NOT NULL,
    indexed_at  TEXT NOT NULL,
    UNIQUE(source_file, line_number)
);
CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON log_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_entries_level_ts ON log_entries(level, timestamp);
CREATE INDEX IF NOT EXISTS idx_entries_event_ts ON log_entries(event, timestamp);
CREATE INDEX IF NOT EXISTS idx_entries_audit_ts ON log_entries(is_audit, timestamp);

CREATE TABLE IF NOT EXISTS log_fields (
    entry_id   INTEGER NOT NULL REFERENCES log_entries(id) ON DELETE CASCADE,
    key        TEXT NOT NULL,
    value_text TEXT NOT NULL,
    UNIQUE(entry_id, key, value_text)
);
CREATE INDEX IF NOT EXISTS idx_fields_key_value ON log_fields(key, value_text);
CREATE INDEX IF NOT EXISTS idx_fields_entry_key ON log_fields(entry_id, key);
`

// migrateIsAudit adds the is_audit column to a pre-existing log_entries
// table that predates it, defaulting existing rows to 0. Subsequent inserts
// populate the real derived value. No-op if the column already exists.
func (s *Store) migrateIsAudit() error {
	rows, err := s.DB.Query(`PRAGMA table_info(log_entries)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	hasIsAudit := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		if name == "is_audit" {
			hasIsAudit = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if hasIsAudit {
		return nil
	}
	_, err = s.DB.Exec(`ALTER TABLE log_entries ADD COLUMN is_audit INTEGER NOT NULL DEFAULT 0`)
	return err
}
