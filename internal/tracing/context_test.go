package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithValues(t *testing.T) {
	tests := []struct {
		name string
		with func(context.Context, string) context.Context
		get  func(context.Context) string
	}{
		{"trace id", WithTraceID, GetTraceID},
		{"request id", WithRequestID, GetRequestID},
		{"session id", WithSessionID, GetSessionID},
		{"operation", WithOperation, GetOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.get(context.Background()); got != "" {
				t.Errorf("Expected empty value, got %s", got)
			}

			ctx := tt.with(context.Background(), "value-1")
			if got := tt.get(ctx); got != "value-1" {
				t.Errorf("Expected value-1, got %s", got)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSessionID(ctx, "0123456789abcdef")
	ctx = WithOperation(ctx, "navigate")

	tc := FromContext(ctx)
	if tc.TraceID != "trace-1" || tc.RequestID != "req-1" || tc.SessionID != "0123456789abcdef" || tc.Operation != "navigate" {
		t.Errorf("Unexpected trace context: %+v", tc)
	}
}

func TestNewContextPartial(t *testing.T) {
	ctx := NewContext(context.Background(), &TraceContext{SessionID: "abcd"})

	if GetSessionID(ctx) != "abcd" {
		t.Error("Expected session ID to be set")
	}
	if GetTraceID(ctx) != "" {
		t.Error("Expected trace ID to be empty")
	}
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background(), "")

	if GetRequestID(ctx) == "" {
		t.Error("Expected generated request ID")
	}
	if GetTraceID(ctx) == "" {
		t.Error("Expected trace ID")
	}

	ctx = NewRequestContext(context.Background(), "given")
	if GetRequestID(ctx) != "given" {
		t.Errorf("Expected request ID given, got %s", GetRequestID(ctx))
	}
}
