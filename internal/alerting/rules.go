package alerting

import (
	"fmt"
	"time"

	"github.com/mikroscope/sidecar/internal/store"
)

// Counter is the subset of the query service alerting depends on.
type Counter interface {
	Count(filter store.Filter) (int64, error)
}

// Trigger is one rule evaluation's outcome.
type Trigger struct {
	Rule     string
	Severity string
	Details  map[string]any
}

// evaluateRules runs both rules against counter at "now" and returns the
// triggers that fired. Rule order is stable: error_threshold, then
// no_logs.
func evaluateRules(counter Counter, policy Policy, now time.Time) ([]Trigger, error) {
	var triggers []Trigger

	windowStart := now.Add(-time.Duration(policy.WindowMinutes) * time.Minute)
	windowFrom := windowStart.Format(time.RFC3339Nano)

	errorCount, err := counter.Count(store.Filter{From: windowFrom, Level: "ERROR"})
	if err != nil {
		return nil, fmt.Errorf("alerting: error_threshold count: %w", err)
	}
	if errorCount >= int64(policy.ErrorThreshold) {
		totalWindowCount, err := counter.Count(store.Filter{From: windowFrom})
		if err != nil {
			return nil, fmt.Errorf("alerting: error_threshold total count: %w", err)
		}
		triggers = append(triggers, Trigger{
			Rule:     "error_threshold",
			Severity: "critical",
			Details: map[string]any{
				"errorCount":       errorCount,
				"threshold":        policy.ErrorThreshold,
				"totalWindowCount": totalWindowCount,
				"windowMinutes":    policy.WindowMinutes,
			},
		})
	}

	if policy.NoLogsThresholdMinutes > 0 {
		recentStart := now.Add(-time.Duration(policy.NoLogsThresholdMinutes) * time.Minute)
		totalRecent, err := counter.Count(store.Filter{From: recentStart.Format(time.RFC3339Nano)})
		if err != nil {
			return nil, fmt.Errorf("alerting: no_logs count: %w", err)
		}
		if totalRecent == 0 {
			triggers = append(triggers, Trigger{
				Rule:     "no_logs",
				Severity: "warning",
				Details: map[string]any{
					"thresholdMinutes": policy.NoLogsThresholdMinutes,
				},
			})
		}
	}

	return triggers, nil
}
