package trace

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeneratedIDLengths(t *testing.T) {
	if id := newTraceID(); len(id) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(id))
	}
	if id := newSpanID(); len(id) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(id))
	}
}

func TestRunTraceID(t *testing.T) {
	got := RunTraceID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	if got != "6ba7b8109dad11d180b400c04fd430c8" {
		t.Errorf("RunTraceID() = %q", got)
	}
}

func TestChild(t *testing.T) {
	parent := Root()
	child := parent.child()

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
}

func TestWithTraceID(t *testing.T) {
	ctx, tc := WithTraceID(context.Background(), "0123456789abcdef0123456789abcdef")
	if tc.TraceID != "0123456789abcdef0123456789abcdef" {
		t.Errorf("TraceID = %q, want caller id", tc.TraceID)
	}
	got, ok := FromContext(ctx)
	if !ok || got.SpanID != tc.SpanID {
		t.Error("context should carry the new span")
	}

	_, tc = WithTraceID(context.Background(), "")
	if len(tc.TraceID) != 32 {
		t.Error("empty trace id should be generated")
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	_, tc2 := EnsureContext(ctx)
	if tc2.TraceID != tc.TraceID {
		t.Error("should return existing trace")
	}
}

func TestStartSpanNested(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "run")
	_, child := StartSpan(ctx, "compare")
	child.SetAttr("screenshot", "home.png")
	child.End(nil)

	if child.Ctx.TraceID != parent.Ctx.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.Ctx.ParentSpanID != parent.Ctx.SpanID {
		t.Error("child's parent should be parent's span")
	}
	if child.Duration() < 0 {
		t.Error("duration should not be negative")
	}
	if parent.Duration() != 0 {
		t.Error("unfinished span should report zero duration")
	}
}

func TestSpanEndLogs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, span := StartSpan(context.Background(), "target")
	span.SetAttr("screenshot", "home.png")
	span.SetAttr("outcome", "match")
	span.End(log)

	out := buf.String()
	for _, want := range []string{"span finished", "span.name=target", "span.screenshot=home.png", "span.outcome=match"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}

func TestLoggerAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, tc := WithTraceID(context.Background(), "feedfacefeedfacefeedfacefeedface")
	Logger(ctx, base).Info("hello")

	if !strings.Contains(buf.String(), "trace_id="+tc.TraceID) {
		t.Errorf("log line %q missing trace id", buf.String())
	}

	buf.Reset()
	Logger(context.Background(), base).Info("plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("log line %q should not carry a trace id", buf.String())
	}
}

func TestMiddleware(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(TraceIDKey, "abc")
	req.Header.Set(SpanIDKey, "caller")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen.TraceID != "abc" || seen.ParentSpanID != "caller" {
		t.Errorf("context = %+v, want propagated ids", seen)
	}
	if got := rec.Header().Get(TraceIDKey); got != "abc" {
		t.Errorf("response trace header = %q, want %q", got, "abc")
	}
}

func TestExtractFromJSON(t *testing.T) {
	tc, ok := ExtractFromJSON([]byte(`{"type":"compare","trace_id":"t1"}`))
	if !ok || tc.TraceID != "t1" {
		t.Errorf("ExtractFromJSON = %+v, %v", tc, ok)
	}
	if _, ok := ExtractFromJSON([]byte(`not json`)); ok {
		t.Error("invalid json should not report a trace id")
	}
}
