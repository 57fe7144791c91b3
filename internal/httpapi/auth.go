package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/mikroscope/sidecar/internal/reqctx"
)

// apiAuth is the general-purpose auth middleware applied to every /api/*
// route except ingest, which resolves a producer id instead (see
// resolveProducerID). It is permissive when neither a bearer token nor
// basic credentials are configured; otherwise a request must satisfy at
// least one of the two configured mechanisms.
func apiAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	tokenConfigured := cfg.BearerToken != ""
	basicConfigured := cfg.BasicUsername != "" && cfg.BasicPassword != ""

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tokenConfigured && !basicConfigured {
				next.ServeHTTP(w, r)
				return
			}

			if tokenConfigured {
				if token, ok := bearerToken(r); ok && token == cfg.BearerToken {
					next.ServeHTTP(w, r)
					return
				}
			}

			if basicConfigured {
				if user, pass, ok := r.BasicAuth(); ok && user == cfg.BasicUsername && pass == cfg.BasicPassword {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// resolveProducerID implements the ingest-specific resolution rule from
// the routes table: basic auth username wins outright as the producer id;
// otherwise a bearer token must match a configured token->producerId
// mapping. When neither basic auth nor a token mapping is configured at
// all, the caller should treat the endpoint as disabled (404).
func resolveProducerID(r *http.Request, cfg AuthConfig) (producerID string, status int) {
	basicConfigured := cfg.BasicUsername != "" && cfg.BasicPassword != ""
	tokenConfigured := len(cfg.IngestProducers) > 0

	if !basicConfigured && !tokenConfigured {
		return "", http.StatusNotFound
	}

	if basicConfigured {
		if user, pass, ok := r.BasicAuth(); ok && user == cfg.BasicUsername && pass == cfg.BasicPassword {
			return user, http.StatusOK
		}
	}

	if tokenConfigured {
		if token, ok := bearerToken(r); ok {
			if pid, ok := cfg.IngestProducers[token]; ok {
				return pid, http.StatusOK
			}
		}
	}

	return "", http.StatusUnauthorized
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// traceIDFromContext returns the request's trace id from its context. No
// handler in this package calls it at present.
func traceIDFromContext(r *http.Request) string {
	return reqctx.GetTraceID(r.Context())
}
