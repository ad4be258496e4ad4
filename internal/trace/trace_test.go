package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewContext(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace ID length = %d, want 32", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span ID length = %d, want 16", len(tc.SpanID))
	}
	if tc.ParentSpanID != "" {
		t.Error("new context should have no parent span")
	}
}

func TestNewChild(t *testing.T) {
	parent := New()
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should share the parent's trace ID")
	}
	if child.SpanID == parent.SpanID {
		t.Error("child should get a fresh span ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent span should be the parent's span")
	}
}

func TestContextRoundTrip(t *testing.T) {
	tc := New()
	ctx := WithContext(context.Background(), tc)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("trace context not found")
	}
	if got != tc {
		t.Errorf("round-tripped context = %+v, want %+v", got, tc)
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should have no trace")
	}
}

func TestEnsureContext(t *testing.T) {
	ctx, tc := EnsureContext(context.Background())
	if tc.TraceID == "" {
		t.Error("EnsureContext should create a trace")
	}

	ctx2, tc2 := EnsureContext(ctx)
	if tc2 != tc {
		t.Error("EnsureContext should reuse an existing trace")
	}
	if ctx2 != ctx {
		t.Error("EnsureContext should not rewrap the context")
	}
}

func TestStartSpanParenting(t *testing.T) {
	ctx, outer := StartSpan(context.Background(), "check_source")
	_, inner := StartSpan(ctx, "sample_frames")

	if inner.Ctx.TraceID != outer.Ctx.TraceID {
		t.Error("nested span should stay in the same trace")
	}
	if inner.Ctx.ParentSpanID != outer.Ctx.SpanID {
		t.Error("nested span should be parented to the outer span")
	}
}

func TestSpanDuration(t *testing.T) {
	_, span := StartSpan(context.Background(), "op")
	if span.Duration() != 0 {
		t.Error("unfinished span should report zero duration")
	}
	span.End()
	if span.Duration() <= 0 {
		t.Error("finished span should report positive duration")
	}
}

func TestMiddlewarePropagatesHeader(t *testing.T) {
	var seen Context
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("x-trace-id", "abc123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen.TraceID != "abc123" {
		t.Errorf("trace ID = %q, want header value", seen.TraceID)
	}

	// Without a header a fresh trace is created.
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}
