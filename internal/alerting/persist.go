package alerting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// loadPolicyFile loads the persisted policy, if present, and overlays it
// onto seed. A missing file is not an error — the seed is used as-is.
func loadPolicyFile(path string, seed Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return seed, nil
	}
	if err != nil {
		return seed, fmt.Errorf("alerting: read policy file: %w", err)
	}

	var patch map[string]any
	if err := json.Unmarshal(data, &patch); err != nil {
		return seed, fmt.Errorf("alerting: parse policy file: %w", err)
	}

	merged, err := seed.Merge(patch)
	if err != nil {
		return seed, fmt.Errorf("alerting: stored policy invalid: %w", err)
	}
	return merged, nil
}

// savePolicyFile writes policy as JSON, mode 0600, creating the parent
// directory as needed.
func savePolicyFile(path string, policy Policy) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("alerting: mkdir: %w", err)
		}
	}
	data, err := json.MarshalIndent(policy, "", "  ")
	if err != nil {
		return fmt.Errorf("alerting: marshal policy: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("alerting: write policy file: %w", err)
	}
	return nil
}
