package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *SyncError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *SyncError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// MissingPolicy reports a command kind dispatched without a registered policy.
func MissingPolicy(kind string) *SyncError {
	return New(ErrCodeMissingPolicy, fmt.Sprintf("no concurrency policy registered for '%s'", kind)).
		WithDetail("kind", kind)
}

// DuplicateRoute reports a command kind or resource registered twice.
func DuplicateRoute(kind string) *SyncError {
	return New(ErrCodeDuplicateRoute, fmt.Sprintf("'%s' is registered more than once", kind)).
		WithDetail("kind", kind)
}

// HandshakeFailed creates a push channel handshake error
func HandshakeFailed(url string, err error) *SyncError {
	return Wrap(err, ErrCodeTransportHandshake, fmt.Sprintf("failed to open push channel to %s", url)).
		WithDetail("url", url)
}

// ChannelClosed creates a push channel closure error
func ChannelClosed(err error) *SyncError {
	if err == nil {
		return New(ErrCodeTransportClosed, "push channel closed")
	}
	return Wrap(err, ErrCodeTransportClosed, "push channel closed")
}

// MalformedFrame creates an error for an unparseable push frame
func MalformedFrame(size int, err error) *SyncError {
	return Wrap(err, ErrCodeMalformedFrame, "malformed push frame").
		WithDetail("size", size)
}

// NoRoute creates a routing error for an unknown interface/operation pair
func NoRoute(iface, operation string) *SyncError {
	return New(ErrCodeNoRoute, fmt.Sprintf("no handler for %s.%s", iface, operation)).
		WithDetail("interface", iface).
		WithDetail("operation", operation)
}

// RemoteCallFailed creates a remote call failure error
func RemoteCallFailed(kind string, err error) *SyncError {
	return Wrap(err, ErrCodeRemoteCallFailed, fmt.Sprintf("remote call failed: %s", kind)).
		WithDetail("kind", kind)
}

// RemoteCallStatus creates a remote call failure for a non-success response status.
func RemoteCallStatus(kind string, status int, body string) *SyncError {
	return New(ErrCodeRemoteCallFailed, fmt.Sprintf("remote call failed: %s returned status %d", kind, status)).
		WithDetail("kind", kind).
		WithDetail("status", status).
		WithDetail("body", body)
}

// RemoteCallPanic converts a recovered thunk panic into a remote call error.
func RemoteCallPanic(kind string, recovered interface{}) *SyncError {
	return New(ErrCodeRemoteCallPanic, fmt.Sprintf("remote call panicked: %s: %v", kind, recovered)).
		WithDetail("kind", kind)
}
