// Package alerting is the alerting manager (C5): a polled evaluator over
// two threshold rules that delivers webhook notifications with retry,
// backoff, and per-rule cooldown.
package alerting

import "fmt"

// Policy is the persisted, user-configurable alerting document.
type Policy struct {
	Enabled                bool   `json:"enabled"`
	WebhookURL             string `json:"webhookUrl,omitempty"`
	IntervalMs             int    `json:"intervalMs"`
	WindowMinutes          int    `json:"windowMinutes"`
	ErrorThreshold         int    `json:"errorThreshold"`
	NoLogsThresholdMinutes int    `json:"noLogsThresholdMinutes"`
	CooldownMs             int    `json:"cooldownMs"`
	WebhookTimeoutMs       int    `json:"webhookTimeoutMs"`
	WebhookRetryAttempts   int    `json:"webhookRetryAttempts"`
	WebhookBackoffMs       int    `json:"webhookBackoffMs"`

	// AllowPrivateWebhookTargets lets webhookUrl resolve to a loopback or
	// private-range address — the common case for a sidecar whose webhook
	// receiver is colocated with the application it monitors. Set false to
	// opt into rejecting such targets (SSRF hardening) when webhookUrl is
	// reachable from untrusted input.
	AllowPrivateWebhookTargets bool `json:"allowPrivateWebhookTargets"`
}

// DefaultPolicy returns the seed policy before any overlay. It carries no
// webhook URL, so Enabled starts false; the startup code turns Enabled on
// when it supplies a webhook URL.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:                false,
		IntervalMs:             30_000,
		WindowMinutes:          5,
		ErrorThreshold:         20,
		NoLogsThresholdMinutes: 0,
		CooldownMs:             300_000,
		WebhookTimeoutMs:       5_000,
		WebhookRetryAttempts:   3,
		WebhookBackoffMs:       250,
		AllowPrivateWebhookTargets: true,
	}
}

// clampBounds enforces each field's stated minimum, leaving values already
// above the minimum untouched.
func (p *Policy) clampBounds() {
	if p.IntervalMs < 1000 {
		p.IntervalMs = 1000
	}
	if p.WindowMinutes < 1 {
		p.WindowMinutes = 1
	}
	if p.ErrorThreshold < 1 {
		p.ErrorThreshold = 1
	}
	if p.NoLogsThresholdMinutes < 0 {
		p.NoLogsThresholdMinutes = 0
	}
	if p.CooldownMs < 1000 {
		p.CooldownMs = 1000
	}
	if p.WebhookTimeoutMs < 250 {
		p.WebhookTimeoutMs = 250
	}
	if p.WebhookRetryAttempts < 1 {
		p.WebhookRetryAttempts = 1
	}
	if p.WebhookBackoffMs < 25 {
		p.WebhookBackoffMs = 25
	}
}

// Validate enforces bounds and the enabled/webhookUrl coupling rule.
func (p *Policy) Validate() error {
	p.clampBounds()
	if p.Enabled && p.WebhookURL == "" {
		return fmt.Errorf("alerting: enabled=true requires a webhookUrl")
	}
	return nil
}

// Merge applies patch on top of p, field by field, then re-validates. A
// field is applied only when its key is present in patch with a value of
// the matching JSON type, so keys absent from patch (a map-decoded partial
// document) keep their current values.
func (p Policy) Merge(patch map[string]any) (Policy, error) {
	merged := p

	if v, ok := patch["enabled"].(bool); ok {
		merged.Enabled = v
	}
	if v, ok := patch["webhookUrl"]; ok {
		if v == nil {
			merged.WebhookURL = ""
		} else if s, ok := v.(string); ok {
			merged.WebhookURL = s
		}
	}
	if v, ok := numberField(patch, "intervalMs"); ok {
		merged.IntervalMs = v
	}
	if v, ok := numberField(patch, "windowMinutes"); ok {
		merged.WindowMinutes = v
	}
	if v, ok := numberField(patch, "errorThreshold"); ok {
		merged.ErrorThreshold = v
	}
	if v, ok := numberField(patch, "noLogsThresholdMinutes"); ok {
		merged.NoLogsThresholdMinutes = v
	}
	if v, ok := numberField(patch, "cooldownMs"); ok {
		merged.CooldownMs = v
	}
	if v, ok := numberField(patch, "webhookTimeoutMs"); ok {
		merged.WebhookTimeoutMs = v
	}
	if v, ok := numberField(patch, "webhookRetryAttempts"); ok {
		merged.WebhookRetryAttempts = v
	}
	if v, ok := numberField(patch, "webhookBackoffMs"); ok {
		merged.WebhookBackoffMs = v
	}
	if v, ok := patch["allowPrivateWebhookTargets"].(bool); ok {
		merged.AllowPrivateWebhookTargets = v
	}

	if err := merged.Validate(); err != nil {
		return p, err
	}
	return merged, nil
}

func numberField(patch map[string]any, key string) (int, bool) {
	v, ok := patch[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}

// Masked returns a copy safe to render at GET /health: the webhook URL is
// collapsed to a presence marker.
func (p Policy) Masked() map[string]any {
	m := map[string]any{
		"enabled":                p.Enabled,
		"intervalMs":             p.IntervalMs,
		"windowMinutes":          p.WindowMinutes,
		"errorThreshold":         p.ErrorThreshold,
		"noLogsThresholdMinutes": p.NoLogsThresholdMinutes,
		"cooldownMs":             p.CooldownMs,
		"webhookTimeoutMs":       p.WebhookTimeoutMs,
		"webhookRetryAttempts":   p.WebhookRetryAttempts,
		"webhookBackoffMs":       p.WebhookBackoffMs,
		"allowPrivateWebhookTargets": p.AllowPrivateWebhookTargets,
	}
	if p.WebhookURL != "" {
		m["webhookUrl"] = "[configured]"
	}
	return m
}
