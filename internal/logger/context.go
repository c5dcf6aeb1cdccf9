package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for an RPC call or
// enforcement pass.
type LogContext struct {
	TraceID   string    // correlation id, set via WithTrace
	SpanID    string    // correlation id for a single method dispatch
	Method    string    // RPC method name (ListClasses, Reload, SetProperty, ...)
	Class     string    // class name the call is operating on, if any
	UID       uint32    // subject user id, if any
	GID       uint32    // subject group id, if any
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for an RPC method dispatch.
func NewLogContext(method string) *LogContext {
	return &LogContext{
		Method:    method,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Method:    lc.Method,
		Class:     lc.Class,
		UID:       lc.UID,
		GID:       lc.GID,
		StartTime: lc.StartTime,
	}
}

// WithClass returns a copy with the class name set
func (lc *LogContext) WithClass(class string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Class = class
	}
	return clone
}

// WithUser returns a copy with the subject uid/gid set
func (lc *LogContext) WithUser(uid, gid uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.UID = uid
		clone.GID = gid
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
