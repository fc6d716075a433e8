// Package trace correlates log lines of one comparison run with W3C-style trace and span ids.
package trace

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header keys for HTTP propagation.
const (
	TraceIDKey = "x-trace-id"
	SpanIDKey  = "x-span-id"
)

type ctxKey struct{}

// Context identifies one span within a trace.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// Root starts a fresh trace.
func Root() Context {
	return Context{TraceID: newTraceID(), SpanID: newSpanID()}
}

func (tc Context) child() Context {
	return Context{TraceID: tc.TraceID, SpanID: newSpanID(), ParentSpanID: tc.SpanID}
}

// RunTraceID maps a run id onto the 32 hex digit trace id form.
func RunTraceID(runID string) string {
	return strings.ReplaceAll(runID, "-", "")
}

// FromContext extracts trace context from context.Context.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// WithContext injects trace context into context.Context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// WithTraceID starts a root span under a caller-chosen trace id. An empty id gets a generated one.
func WithTraceID(ctx context.Context, traceID string) (context.Context, Context) {
	tc := Context{TraceID: traceID, SpanID: newSpanID()}
	if tc.TraceID == "" {
		tc.TraceID = newTraceID()
	}
	return WithContext(ctx, tc), tc
}

// EnsureContext returns the trace already in ctx or starts a new one.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := Root()
	return WithContext(ctx, tc), tc
}

func newTraceID() string {
	return RunTraceID(uuid.NewString())
}

func newSpanID() string {
	return newTraceID()[:16]
}

// Span times one unit of work, such as a single screenshot comparison.
type Span struct {
	Name  string
	Ctx   Context
	start time.Time
	end   time.Time
	attrs []slog.Attr
}

// StartSpan opens a span under the trace in ctx, or under a new trace.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	tc := Root()
	if parent, ok := FromContext(ctx); ok && parent.TraceID != "" {
		tc = parent.child()
	}
	s := &Span{Name: name, Ctx: tc, start: time.Now()}
	return WithContext(ctx, tc), s
}

// SetAttr records key on the span; later values for the same key are appended, not replaced.
func (s *Span) SetAttr(key string, val any) {
	s.attrs = append(s.attrs, slog.Any(key, val))
}

// End closes the span and logs it at debug level when log is non-nil.
func (s *Span) End(log *slog.Logger) {
	s.end = time.Now()
	if log != nil {
		log.Debug("span finished", "span", s)
	}
}

// Duration is zero until End is called.
func (s *Span) Duration() time.Duration {
	if s.end.IsZero() {
		return 0
	}
	return s.end.Sub(s.start)
}

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 3+len(s.attrs))
	attrs = append(attrs,
		slog.String("name", s.Name),
		slog.String("span_id", s.Ctx.SpanID),
		slog.Duration("duration", s.Duration()),
	)
	attrs = append(attrs, s.attrs...)
	return slog.GroupValue(attrs...)
}

// Logger returns base annotated with the trace ids found in ctx.
// A nil base falls back to slog.Default().
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	tc, ok := FromContext(ctx)
	if !ok {
		return base
	}
	l := base.With("trace_id", tc.TraceID, "span_id", tc.SpanID)
	if tc.ParentSpanID != "" {
		l = l.With("parent_span_id", tc.ParentSpanID)
	}
	return l
}
