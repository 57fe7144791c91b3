package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mikroscope/sidecar/internal/loopctl"
	"github.com/mikroscope/sidecar/internal/store"
)

// ErrAlreadyRunning is returned by Run when a pass is already in flight.
var ErrAlreadyRunning = errors.New("indexer: pass already running")

// Indexer walks Root and upserts parsed lines into Store, tracking a
// per-file FileCursor across incremental passes.
type Indexer struct {
	Root   string
	Store  *store.Store
	Logger *slog.Logger

	guard loopctl.Guard

	mu      sync.Mutex
	cursors map[string]FileCursor // keyed by absolute path
}

// New creates an Indexer rooted at root.
func New(root string, st *store.Store) *Indexer {
	return &Indexer{
		Root:    root,
		Store:   st,
		Logger:  slog.Default(),
		cursors: make(map[string]FileCursor),
	}
}

// ResetIncrementalState clears the entire cursor map, forcing the next
// incremental pass to behave like a full pass for every file it sees.
func (ix *Indexer) ResetIncrementalState() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.cursors = make(map[string]FileCursor)
}

// Run performs one indexing pass. At most one pass runs at a time; a call
// made while another is in flight returns ErrAlreadyRunning immediately.
func (ix *Indexer) Run(ctx context.Context, mode Mode) (Report, error) {
	if !ix.guard.Try() {
		return Report{}, ErrAlreadyRunning
	}
	defer ix.guard.Done()

	report := Report{StartedAt: time.Now().UTC(), Mode: mode}

	files, err := walkLogFiles(ix.Root)
	if err != nil {
		report.FinishedAt = time.Now().UTC()
		return report, err
	}

	seen := make(map[string]bool, len(files))

	for _, abs := range files {
		select {
		case <-ctx.Done():
			report.FinishedAt = time.Now().UTC()
			return report, ctx.Err()
		default:
		}

		seen[abs] = true
		rel := relativeSourcePath(ix.Root, abs)

		info, statErr := os.Stat(abs)
		if statErr != nil {
			ix.Logger.Warn("indexer: stat failed, skipping file", "file", rel, "error", statErr)
			continue
		}
		report.FilesScanned++

		startOffset := int64(0)
		startLine := 1

		if mode == ModeIncremental {
			ix.mu.Lock()
			cursor, ok := ix.cursors[abs]
			ix.mu.Unlock()

			if ok {
				rewrite := info.Size() < cursor.ByteOffset ||
					(info.Size() == cursor.ByteOffset && !info.ModTime().Equal(cursor.MtimeAtCheckpoint))

				if rewrite {
					if _, _, delErr := ix.Store.DeleteEntriesForSourceFile(rel); delErr != nil {
						ix.Logger.Error("indexer: purge on rewrite failed", "file", rel, "error", delErr)
						continue
					}
				} else {
					startOffset = cursor.ByteOffset
					startLine = cursor.LastLineNumber + 1
				}
			}
		}

		newOffset, lines, inserted, skipped, parseErrs, lastLine, scanErr := ix.scanFile(rel, abs, startOffset, startLine)
		if scanErr != nil {
			ix.Logger.Error("indexer: scan failed", "file", rel, "error", scanErr)
			continue
		}

		report.LinesScanned += lines
		report.RecordsInserted += inserted
		report.RecordsSkipped += skipped
		report.ParseErrors += parseErrs

		if mode == ModeIncremental {
			ix.mu.Lock()
			ix.cursors[abs] = FileCursor{
				ByteOffset:           newOffset,
				FileSizeAtCheckpoint: info.Size(),
				LastLineNumber:       lastLine,
				MtimeAtCheckpoint:    info.ModTime(),
			}
			ix.mu.Unlock()
		}
	}

	if mode == ModeIncremental {
		ix.mu.Lock()
		for abs := range ix.cursors {
			if !seen[abs] {
				delete(ix.cursors, abs)
			}
		}
		ix.mu.Unlock()
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// scanFile streams absPath starting at startOffset/startLine, upserting
// every well-formed line. It returns the offset just past the last fully
// consumed line (a trailing line with no terminating newline is left
// unconsumed, since the writer may still be mid-append) and the highest
// physical line number reached.
func (ix *Indexer) scanFile(relPath, absPath string, startOffset int64, startLine int) (newOffset int64, linesScanned, recordsInserted, recordsSkipped, parseErrors, lastLineNumber int, err error) {
	f, err := os.Open(absPath)
	if err != nil {
		return 0, 0, 0, 0, 0, startLine - 1, err
	}
	defer f.Close()

	if startOffset > 0 {
		if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
			return 0, 0, 0, 0, 0, startLine - 1, err
		}
	}

	reader := bufio.NewReader(f)
	offset := startOffset
	lastLineNumber = startLine - 1
	current := startLine

	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return offset, linesScanned, recordsInserted, recordsSkipped, parseErrors, lastLineNumber, readErr
		}
		if readErr == io.EOF {
			// A non-empty line with no trailing newline is a partial write
			// in progress; leave it for the next pass.
			break
		}

		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			linesScanned++
			switch ix.processLine(relPath, current, trimmed) {
			case outcomeInserted:
				recordsInserted++
			case outcomeSkipped:
				recordsSkipped++
			case outcomeParseError:
				parseErrors++
			}
		}

		offset += int64(len(line))
		lastLineNumber = current
		current++
	}

	return offset, linesScanned, recordsInserted, recordsSkipped, parseErrors, lastLineNumber, nil
}

type lineOutcome int

const (
	outcomeInserted lineOutcome = iota
	outcomeSkipped
	outcomeParseError
)

func (ix *Indexer) processLine(relPath string, lineNumber int, trimmed string) lineOutcome {
	var rec map[string]any
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return outcomeParseError
	}

	n := normalizeRecord(rec, relPath)

	id, inserted, err := ix.Store.UpsertEntry(store.EntryInput{
		Timestamp:  n.timestamp,
		Level:      n.level,
		Event:      n.event,
		Message:    n.message,
		IsAudit:    n.isAudit,
		DataJSON:   trimmed,
		SourceFile: relPath,
		LineNumber: lineNumber,
	})
	if err != nil {
		ix.Logger.Error("indexer: upsert entry failed", "file", relPath, "line", lineNumber, "error", err)
		return outcomeSkipped
	}
	if !inserted {
		return outcomeSkipped
	}

	for key, val := range scalarFields(rec) {
		if err := ix.Store.UpsertField(id, key, val); err != nil {
			ix.Logger.Error("indexer: upsert field failed", "file", relPath, "line", lineNumber, "key", key, "error", err)
		}
	}

	return outcomeInserted
}
