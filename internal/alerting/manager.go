package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mikroscope/sidecar/internal/loopctl"
)

// State is the process-local counters exposed at /health.
type State struct {
	Runs                int64            `json:"runs"`
	Sent                int64            `json:"sent"`
	Suppressed          int64            `json:"suppressed"`
	LastTriggerAtByRule map[string]string `json:"lastTriggerAtByRule,omitempty"`
	LastError           string           `json:"lastError,omitempty"`
	LastCycleMs         int64            `json:"lastCycleMs"`
}

// Manager is the alerting manager (C5): owns the cached policy, the
// process-local AlertState, and the evaluation/delivery scheduler.
type Manager struct {
	ConfigPath string
	Counter    Counter
	ServiceURL string
	Logger     *slog.Logger

	mu                  sync.Mutex
	policy              Policy
	runs, sent, suppr   int64
	lastTriggerAtByRule map[string]time.Time
	lastError           string
	lastCycleMs         int64

	guard loopctl.Guard
	timer loopctl.ResettableTimer
	runMu sync.Mutex // serializes timer rearm against concurrent UpdatePolicy
}

// New constructs a Manager, loading and overlaying any persisted policy
// file onto seed.
func New(seed Policy, configPath string, counter Counter, serviceURL string) (*Manager, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	policy, err := loadPolicyFile(configPath, seed)
	if err != nil {
		return nil, err
	}

	return &Manager{
		ConfigPath:          configPath,
		Counter:             counter,
		ServiceURL:          serviceURL,
		Logger:              slog.Default(),
		policy:              policy,
		lastTriggerAtByRule: make(map[string]time.Time),
	}, nil
}

// Policy returns a copy of the current effective policy.
func (m *Manager) Policy() Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// State returns a point-in-time snapshot of the alert counters.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	byRule := make(map[string]string, len(m.lastTriggerAtByRule))
	for rule, at := range m.lastTriggerAtByRule {
		byRule[rule] = at.Format(time.RFC3339Nano)
	}

	return State{
		Runs:                m.runs,
		Sent:                m.sent,
		Suppressed:          m.suppr,
		LastTriggerAtByRule: byRule,
		LastError:           m.lastError,
		LastCycleMs:         m.lastCycleMs,
	}
}

// Run runs one immediate cycle and, if enabled, arms the recurring timer.
// Run blocks until ctx is cancelled; callers typically launch it in a
// goroutine.
func (m *Manager) Run(ctx context.Context) {
	m.runCycle(ctx)
	m.rearm(ctx)
	<-ctx.Done()
	m.timer.Stop()
}

func (m *Manager) rearm(ctx context.Context) {
	policy := m.Policy()
	if !policy.Enabled {
		return
	}
	m.timer.Reset(time.Duration(policy.IntervalMs)*time.Millisecond, func() {
		m.runCycle(ctx)
		m.rearm(ctx)
	})
}

// runCycle evaluates both rules once, guarded so overlapping ticks are
// no-ops rather than concurrent runs.
func (m *Manager) runCycle(ctx context.Context) {
	if !m.guard.Try() {
		return
	}
	defer m.guard.Done()

	start := time.Now()
	policy := m.Policy()

	m.mu.Lock()
	m.runs++
	m.mu.Unlock()

	triggers, err := evaluateRules(m.Counter, policy, start.UTC())
	if err != nil {
		m.mu.Lock()
		m.lastError = err.Error()
		m.mu.Unlock()
		m.Logger.Error("alerting: rule evaluation failed", "error", err)
		return
	}

	for _, trig := range triggers {
		m.handleTrigger(ctx, policy, trig, start.UTC())
	}

	m.mu.Lock()
	m.lastCycleMs = time.Since(start).Milliseconds()
	m.mu.Unlock()
}

func (m *Manager) handleTrigger(ctx context.Context, policy Policy, trig Trigger, now time.Time) {
	m.mu.Lock()
	last, ok := m.lastTriggerAtByRule[trig.Rule]
	withinCooldown := ok && now.Sub(last) < time.Duration(policy.CooldownMs)*time.Millisecond
	if withinCooldown {
		m.suppr++
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	payload := WebhookPayload{
		Source:      "mikroscope",
		Rule:        trig.Rule,
		Severity:    trig.Severity,
		TriggeredAt: now.Format(time.RFC3339Nano),
		ServiceURL:  m.ServiceURL,
		Details:     trig.Details,
	}

	err := deliver(ctx, policy.WebhookURL, payload,
		time.Duration(policy.WebhookTimeoutMs)*time.Millisecond,
		policy.WebhookRetryAttempts,
		time.Duration(policy.WebhookBackoffMs)*time.Millisecond,
		policy.AllowPrivateWebhookTargets)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lastError = err.Error()
		m.Logger.Error("alerting: webhook delivery failed", "rule", trig.Rule, "error", err)
		return
	}
	m.sent++
	m.lastTriggerAtByRule[trig.Rule] = now
}

// UpdatePolicy merges patch onto the current policy, validates, persists,
// and reschedules the timer.
func (m *Manager) UpdatePolicy(ctx context.Context, patch map[string]any) (Policy, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	current := m.Policy()
	merged, err := current.Merge(patch)
	if err != nil {
		return Policy{}, err
	}

	if err := savePolicyFile(m.ConfigPath, merged); err != nil {
		return Policy{}, err
	}

	m.mu.Lock()
	m.policy = merged
	m.mu.Unlock()

	m.timer.Stop()
	m.rearm(ctx)

	return merged, nil
}

// TestWebhook sends a manual-test payload, honoring the configured retry
// machinery, to override if non-empty or else the configured webhookUrl.
func (m *Manager) TestWebhook(ctx context.Context, override *string) (sentAt time.Time, targetURL string, err error) {
	policy := m.Policy()

	targetURL = policy.WebhookURL
	if override != nil && *override != "" {
		targetURL = *override
	}
	if targetURL == "" {
		return time.Time{}, "", fmt.Errorf("alerting: no webhookUrl configured or provided")
	}

	now := time.Now().UTC()
	payload := WebhookPayload{
		Source:      "mikroscope",
		Rule:        "manual_test",
		Severity:    "warning",
		TriggeredAt: now.Format(time.RFC3339Nano),
		ServiceURL:  m.ServiceURL,
		Details:     map[string]any{"message": "manual test trigger"},
	}

	if err := deliver(ctx, targetURL, payload,
		time.Duration(policy.WebhookTimeoutMs)*time.Millisecond,
		policy.WebhookRetryAttempts,
		time.Duration(policy.WebhookBackoffMs)*time.Millisecond,
		policy.AllowPrivateWebhookTargets); err != nil {
		return time.Time{}, targetURL, err
	}

	return now, targetURL, nil
}
