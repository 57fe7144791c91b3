package server

import (
	"crypto/tls"
	"fmt"
)

// loadTLSConfig builds a minimal TLS 1.3 server configuration from an
// on-disk certificate/key pair. HTTP/3 and MCP-over-QUIC ALPN negotiation
// are out of scope here — this sidecar serves one HTTP/1.1+2 listener.
func loadTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("server: load TLS keypair: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
	}, nil
}
