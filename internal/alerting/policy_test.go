package alerting

import "testing"

func TestDefaultPolicyValidates(t *testing.T) {
	p := DefaultPolicy()
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestEnabledWithoutWebhookURLIsInvalid(t *testing.T) {
	p := DefaultPolicy()
	p.Enabled = true
	if err := p.Validate(); err == nil {
		t.Fatal("expected validation error when enabled without a webhookUrl")
	}
}

func TestClampBoundsEnforcesMinimums(t *testing.T) {
	p := Policy{IntervalMs: 1, WindowMinutes: 0, ErrorThreshold: 0, CooldownMs: 1, WebhookTimeoutMs: 1, WebhookRetryAttempts: 0, WebhookBackoffMs: 1}
	p.clampBounds()
	if p.IntervalMs != 1000 || p.WindowMinutes != 1 || p.ErrorThreshold != 1 || p.CooldownMs != 1000 ||
		p.WebhookTimeoutMs != 250 || p.WebhookRetryAttempts != 1 || p.WebhookBackoffMs != 25 {
		t.Fatalf("got %+v", p)
	}
}

func TestMergePartialPatchPreservesUnsetFields(t *testing.T) {
	base := DefaultPolicy()
	base.ErrorThreshold = 42

	merged, err := base.Merge(map[string]any{"windowMinutes": float64(10)})
	if err != nil {
		t.Fatal(err)
	}
	if merged.WindowMinutes != 10 {
		t.Fatalf("got WindowMinutes=%d, want 10", merged.WindowMinutes)
	}
	if merged.ErrorThreshold != 42 {
		t.Fatalf("expected untouched field to survive merge, got ErrorThreshold=%d", merged.ErrorThreshold)
	}
}

func TestMergeRejectsInvalidResult(t *testing.T) {
	base := DefaultPolicy()
	_, err := base.Merge(map[string]any{"enabled": true})
	if err == nil {
		t.Fatal("expected merge to reject enabled=true with no webhookUrl")
	}
}

func TestMaskedHidesWebhookURL(t *testing.T) {
	p := DefaultPolicy()
	p.WebhookURL = "https://example.com/hook"
	masked := p.Masked()
	if masked["webhookUrl"] != "[configured]" {
		t.Fatalf("expected masked webhookUrl, got %v", masked["webhookUrl"])
	}

	p2 := DefaultPolicy()
	masked2 := p2.Masked()
	if _, present := masked2["webhookUrl"]; present {
		t.Fatal("expected webhookUrl key to be omitted entirely when unset")
	}
}
