package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mikroscope/sidecar/internal/netguard"
)

// WebhookPayload is the JSON body posted to webhookUrl.
type WebhookPayload struct {
	Source      string         `json:"source"`
	Rule        string         `json:"rule"`
	Severity    string         `json:"severity"`
	TriggeredAt string         `json:"triggeredAt"`
	ServiceURL  string         `json:"serviceUrl"`
	Details     map[string]any `json:"details"`
}

// deliver POSTs payload to targetURL, retrying retryable failures up to
// attempts times with exponential backoff. The target (and every redirect
// hop) is validated with netguard; allowPrivate controls whether a
// loopback/private-range target is accepted (the common case for a
// sidecar's colocated webhook receiver) or rejected as SSRF-prone.
func deliver(ctx context.Context, targetURL string, payload WebhookPayload, timeout time.Duration, attempts int, backoff time.Duration, allowPrivate bool) error {
	if err := netguard.Validate(targetURL, allowPrivate); err != nil {
		return fmt.Errorf("alerting: webhook target rejected: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("alerting: marshal webhook payload: %w", err)
	}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return netguard.Validate(req.URL.String(), allowPrivate)
		},
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := attemptDelivery(ctx, client, targetURL, body)
		if err == nil {
			return nil
		}
		lastErr = err

		var re *retryableError
		if !isRetryable(err, &re) || attempt == attempts {
			return lastErr
		}

		delay := backoff * time.Duration(1<<uint(attempt-1))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

type retryableError struct{ inner error }

func (e *retryableError) Error() string { return e.inner.Error() }
func (e *retryableError) Unwrap() error { return e.inner }

func isRetryable(err error, target **retryableError) bool {
	re, ok := err.(*retryableError)
	if ok {
		*target = re
	}
	return ok
}

func attemptDelivery(ctx context.Context, client *http.Client, targetURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		// Network/timeout/abort errors are retryable.
		return &retryableError{inner: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	statusErr := fmt.Errorf("alerting: webhook responded %d", resp.StatusCode)
	if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &retryableError{inner: statusErr}
	}
	return statusErr
}
