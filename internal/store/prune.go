package store

import "fmt"

// PruneByRetention deletes entries older than their retention horizon: rows
// with is_audit=0 are compared against normalCutoffISO, rows with is_audit=1
// against auditCutoffISO. Field rows are deleted first so their count is
// observable despite the FK cascade. Both horizons run in one transaction.
func (s *Store) PruneByRetention(normalCutoffISO, auditCutoffISO string) (PruneReport, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return PruneReport{}, fmt.Errorf("store: prune begin: %w", err)
	}
	defer tx.Rollback()

	var report PruneReport

	for _, horizon := range []struct {
		isAudit int
		cutoff  string
	}{
		{0, normalCutoffISO},
		{1, auditCutoffISO},
	} {
		if horizon.cutoff == "" {
			continue
		}

		res, err := tx.Exec(
			`DELETE FROM log_fields WHERE entry_id IN (
				SELECT id FROM log_entries WHERE is_audit = ? AND timestamp < ?
			)`,
			horizon.isAudit, horizon.cutoff,
		)
		if err != nil {
			return PruneReport{}, fmt.Errorf("store: prune fields: %w", err)
		}
		fieldsDeleted, _ := res.RowsAffected()

		res, err = tx.Exec(
			`DELETE FROM log_entries WHERE is_audit = ? AND timestamp < ?`,
			horizon.isAudit, horizon.cutoff,
		)
		if err != nil {
			return PruneReport{}, fmt.Errorf("store: prune entries: %w", err)
		}
		entriesDeleted, _ := res.RowsAffected()

		report.FieldsDeleted += fieldsDeleted
		report.EntriesDeleted += entriesDeleted
	}

	if err := tx.Commit(); err != nil {
		return PruneReport{}, fmt.Errorf("store: prune commit: %w", err)
	}
	return report, nil
}
