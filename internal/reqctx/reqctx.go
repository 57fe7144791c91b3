// Package reqctx carries request-scoped values — producer id, request id,
// trace id — through context.Context instead of ambient globals, so every
// handler and background task receives the same three long-lived objects
// (store, alerting manager, ingest queue) and per-request identity
// explicitly rather than through package state.
package reqctx

import "context"

type contextKey string

const (
	requestIDKey contextKey = "mikroscope_request_id"
	traceIDKey   contextKey = "mikroscope_trace_id"
	producerIDKey contextKey = "mikroscope_producer_id"
)

// WithRequestID attaches a per-request identifier to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request identifier, or "" if absent.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithTraceID attaches a trace correlation identifier to ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// GetTraceID returns the trace identifier, or "" if absent.
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// WithProducerID attaches the server-resolved producer id to ctx.
func WithProducerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, producerIDKey, id)
}

// GetProducerID returns the resolved producer id, or "" if absent.
func GetProducerID(ctx context.Context) string {
	v, _ := ctx.Value(producerIDKey).(string)
	return v
}
