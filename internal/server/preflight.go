package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikroscope/sidecar/internal/diskspace"
)

// preflightDir creates dir if missing, proves it is writable by creating
// and removing a probe file, and verifies at least minFreeBytes is free on
// its filesystem. Any failure aborts startup.
func preflightDir(dir string, minFreeBytes uint64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("preflight: create %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".mikroscope-preflight")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("preflight: write probe in %s: %w", dir, err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("preflight: remove probe in %s: %w", dir, err)
	}

	free, err := diskspace.FreeBytes(dir)
	if err != nil {
		return fmt.Errorf("preflight: statfs %s: %w", dir, err)
	}
	if free < minFreeBytes {
		return fmt.Errorf("preflight: %s has %d bytes free, need at least %d", dir, free, minFreeBytes)
	}

	return nil
}
