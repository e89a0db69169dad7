package errors

import (
	"fmt"
	"testing"
)

func TestSyncError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeNoRoute, "no handler")
	if err.Code != ErrCodeNoRoute {
		t.Errorf("expected code %s, got %s", ErrCodeNoRoute, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("connection refused")
	wrapped := Wrap(cause, ErrCodeRemoteCallFailed, "call failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	if !Is(wrapped, ErrCodeRemoteCallFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeNoRoute) {
		t.Error("Is should return false for non-matching code")
	}

	detailed := err.WithDetail("interface", "jobs").WithDetail("attempt", 2)
	if detailed.Details["interface"] != "jobs" {
		t.Error("WithDetail should add details")
	}
}

func TestIsFollowsWrappedCodes(t *testing.T) {
	inner := HandshakeFailed("ws://localhost/ws", fmt.Errorf("dial tcp: refused"))
	outer := fmt.Errorf("open push channel: %w", inner)

	if !Is(outer, ErrCodeTransportHandshake) {
		t.Error("Is should unwrap fmt wrappers")
	}
	if GetCode(outer) != ErrCodeTransportHandshake {
		t.Errorf("expected %s, got %s", ErrCodeTransportHandshake, GetCode(outer))
	}

	nested := Wrap(inner, ErrCodeInternal, "startup")
	if !Is(nested, ErrCodeTransportHandshake) {
		t.Error("Is should find codes wrapped inside another SyncError")
	}
}

func TestErrorClasses(t *testing.T) {
	tests := []struct {
		err   error
		class Class
	}{
		{ChannelClosed(nil), ClassTransport},
		{MalformedFrame(3, fmt.Errorf("eof")), ClassTransport},
		{RemoteCallFailed("samples.find", fmt.Errorf("boom")), ClassRemoteCall},
		{RemoteCallPanic("samples.find", "nil map"), ClassRemoteCall},
		{NoRoute("widgets", "update"), ClassRouting},
		{MissingPolicy("samples.find"), ClassConfiguration},
		{DuplicateRoute("samples.find"), ClassConfiguration},
		{New(ErrCodeInvalidInput, "bad"), ClassInternal},
	}

	for _, tt := range tests {
		if !IsClass(tt.err, tt.class) {
			t.Errorf("%v: expected class %s, got %s", tt.err, tt.class, GetCode(tt.err).Class())
		}
	}
}

func TestErrorConstructors(t *testing.T) {
	err := MissingPolicy("samples.create")
	if err.Code != ErrCodeMissingPolicy {
		t.Errorf("expected code %s, got %s", ErrCodeMissingPolicy, err.Code)
	}
	if err.Details["kind"] != "samples.create" {
		t.Error("MissingPolicy should include kind detail")
	}

	err = RemoteCallStatus("files.remove", 404, "not found")
	if err.Details["status"] != 404 {
		t.Error("RemoteCallStatus should include status detail")
	}

	if ChannelClosed(nil).Cause != nil {
		t.Error("ChannelClosed(nil) should not carry a cause")
	}
}
