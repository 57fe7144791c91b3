// Package netguard validates outbound webhook target URLs before the
// alerting manager dials them, preventing an operator-configured (or
// attacker-influenced, if the config endpoint is reachable) webhookUrl from
// pointing the sidecar's own network access at internal/loopback services.
package netguard

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("netguard: only http and https schemes are allowed")

// ErrSSRF is returned when a URL targets a private or loopback address.
var ErrSSRF = errors.New("netguard: URL targets a private or loopback address")

// Validate checks that rawURL uses http/https and has a hostname. Unless
// allowPrivate is set, it also rejects hosts that resolve to a private or
// loopback IP — DNS resolution is performed to catch rebinding via internal
// hostnames. Applied both to the configured webhookUrl and to every
// redirect hop a webhook delivery follows. A log sidecar's webhook receiver
// is ordinarily a private/internal service colocated with it, so callers
// pass allowPrivate=true by default and only set it false to opt into
// strict SSRF hardening against an attacker-influenced webhookUrl.
func Validate(rawURL string, allowPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("netguard: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("netguard: URL has no host")
	}
	if allowPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// DNS failure is not our call to make here — let the HTTP client
		// surface the network error at connection time.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",
		"100.64.0.0/10", // carrier-grade NAT
		"169.254.0.0/16",
	}
	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
