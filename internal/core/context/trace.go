package context

import "context"

// TraceContext carries the correlation identifiers of one API request.
// The HTTP trace middleware fills it from the inbound X-Request-ID and
// X-Trace-ID headers (generating values when absent); the logger stamps
// trace_id and request_id from it on every line.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace attaches the trace context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the trace context, or nil outside a traced request
// (background jobs, seeding).
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns the request id, or "" outside a traced request.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}
