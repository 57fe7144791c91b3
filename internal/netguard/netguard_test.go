package netguard_test

import (
	"testing"

	"github.com/mikroscope/sidecar/internal/netguard"
)

func TestValidateAllowsLoopbackByDefault(t *testing.T) {
	if err := netguard.Validate("http://127.0.0.1:9000/hook", true); err != nil {
		t.Fatalf("unexpected error for loopback URL with allowPrivate=true: %v", err)
	}
}

func TestValidateRejectsLoopbackWhenNotAllowed(t *testing.T) {
	if err := netguard.Validate("http://127.0.0.1:9000/hook", false); err == nil {
		t.Fatal("expected loopback URL to be rejected when allowPrivate=false")
	}
}

func TestValidateRejectsPrivateRangeWhenNotAllowed(t *testing.T) {
	for _, u := range []string{
		"http://10.1.2.3/hook",
		"http://192.168.1.5/hook",
		"http://172.16.0.1/hook",
	} {
		if err := netguard.Validate(u, false); err == nil {
			t.Fatalf("expected %q to be rejected", u)
		}
	}
}

func TestValidateAllowsPrivateRangeWhenAllowed(t *testing.T) {
	for _, u := range []string{
		"http://10.1.2.3/hook",
		"http://192.168.1.5/hook",
		"http://172.16.0.1/hook",
	} {
		if err := netguard.Validate(u, true); err != nil {
			t.Fatalf("unexpected error for %q with allowPrivate=true: %v", u, err)
		}
	}
}

func TestValidateRejectsNonHTTPScheme(t *testing.T) {
	if err := netguard.Validate("file:///etc/passwd", true); err == nil {
		t.Fatal("expected non-http scheme to be rejected regardless of allowPrivate")
	}
}

func TestValidateAllowsPublicURL(t *testing.T) {
	if err := netguard.Validate("https://example.com/hook", false); err != nil {
		t.Fatalf("unexpected error for public URL: %v", err)
	}
}

func TestValidateRejectsMalformedURL(t *testing.T) {
	if err := netguard.Validate("://not-a-url", false); err == nil {
		t.Fatal("expected malformed URL to be rejected")
	}
}
