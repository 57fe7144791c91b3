package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mikroscope/sidecar/internal/loopctl"
	"github.com/mikroscope/sidecar/internal/store"
)

// ErrAlreadyRunning is returned by RunOnce when a pass is already in flight.
var ErrAlreadyRunning = errors.New("maintenance: pass already running")

// Loop is the maintenance loop. It owns no persistent state beyond the
// last-error counter reported at /health.
type Loop struct {
	Config
	Store  *store.Store
	Logger *slog.Logger

	guard loopctl.Guard

	mu        sync.Mutex
	lastError string
}

// New creates a Loop.
func New(cfg Config, st *store.Store) *Loop {
	return &Loop{Config: cfg, Store: st, Logger: slog.Default()}
}

// LastError returns the most recent pass's error, if any.
func (l *Loop) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastError
}

func (l *Loop) setLastError(msg string) {
	l.mu.Lock()
	l.lastError = msg
	l.mu.Unlock()
}

// RunOnce walks the logs root, deletes (optionally backing up audit files
// first) any file past its retention horizon, prunes the store, and
// vacuums if anything changed. At most one pass runs at a time.
func (l *Loop) RunOnce(ctx context.Context) (Report, error) {
	if !l.guard.Try() {
		return Report{}, ErrAlreadyRunning
	}
	defer l.guard.Done()

	report := Report{StartedAt: time.Now().UTC()}
	now := report.StartedAt

	var firstErr error

	if err := l.sweepFiles(ctx, now, &report); err != nil {
		firstErr = err
		l.Logger.Error("maintenance: file sweep failed", "error", err)
	}

	pruned, err := l.pruneStore(now)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
		l.Logger.Error("maintenance: store prune failed", "error", err)
	} else {
		report.EntriesPruned = pruned.EntriesDeleted
		report.FieldsPruned = pruned.FieldsDeleted
	}

	if report.FilesDeleted > 0 || report.EntriesPruned > 0 {
		if err := l.Store.Vacuum(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			l.Logger.Error("maintenance: vacuum failed", "error", err)
		} else {
			report.VacuumRun = true
		}
	}

	if firstErr != nil {
		l.setLastError(firstErr.Error())
	} else {
		l.setLastError("")
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (l *Loop) sweepFiles(ctx context.Context, now time.Time, report *Report) error {
	if l.LogRetentionDays <= 0 && l.LogAuditRetentionDays <= 0 {
		return nil
	}

	files, err := walkNDJSON(l.LogsRoot)
	if err != nil {
		return err
	}

	for _, abs := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		info, err := os.Stat(abs)
		if err != nil {
			continue
		}

		audit := looksLikeAudit(abs)
		horizonDays := l.LogRetentionDays
		if audit {
			horizonDays = l.LogAuditRetentionDays
		}
		if horizonDays <= 0 {
			continue
		}

		cutoff := now.AddDate(0, 0, -horizonDays)
		if info.ModTime().After(cutoff) {
			continue
		}

		if audit && l.AuditBackupDirectory != "" {
			rel, relErr := filepath.Rel(l.LogsRoot, abs)
			if relErr != nil {
				rel = filepath.Base(abs)
			}
			if err := backupFile(abs, filepath.Join(l.AuditBackupDirectory, rel)); err != nil {
				l.Logger.Error("maintenance: backup failed, skipping delete", "file", abs, "error", err)
				continue
			}
			report.FilesBackedUp++
		}

		if err := os.Remove(abs); err != nil {
			l.Logger.Error("maintenance: delete failed", "file", abs, "error", err)
			continue
		}
		report.FilesDeleted++
	}

	return nil
}

func (l *Loop) pruneStore(now time.Time) (store.PruneReport, error) {
	var normalCutoff, auditCutoff string
	if l.DBRetentionDays > 0 {
		normalCutoff = now.AddDate(0, 0, -l.DBRetentionDays).Format(time.RFC3339Nano)
	}
	if l.DBAuditRetentionDays > 0 {
		auditCutoff = now.AddDate(0, 0, -l.DBAuditRetentionDays).Format(time.RFC3339Nano)
	}
	if normalCutoff == "" && auditCutoff == "" {
		return store.PruneReport{}, nil
	}
	return l.Store.PruneByRetention(normalCutoff, auditCutoff)
}

func backupFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil // already backed up by a prior, interrupted pass
		}
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func walkNDJSON(root string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.ToLower(filepath.Ext(path)) == ".ndjson" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func looksLikeAudit(path string) bool {
	lower := strings.ToLower(path)
	for _, seg := range strings.Split(filepath.ToSlash(lower), "/") {
		if strings.Contains(seg, "audit") {
			return true
		}
	}
	return false
}
