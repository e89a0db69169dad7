package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

// Class groups error codes by how they propagate.
type Class string

const (
	ClassTransport     Class = "transport"
	ClassRemoteCall    Class = "remote_call"
	ClassRouting       Class = "routing"
	ClassConfiguration Class = "configuration"
	ClassInternal      Class = "internal"
)

const (
	// Transport errors (push channel)
	ErrCodeTransportHandshake ErrorCode = "TRANSPORT_HANDSHAKE"
	ErrCodeTransportClosed    ErrorCode = "TRANSPORT_CLOSED"
	ErrCodeMalformedFrame     ErrorCode = "MALFORMED_FRAME"

	// Remote call errors
	ErrCodeRemoteCallFailed ErrorCode = "REMOTE_CALL_FAILED"
	ErrCodeRemoteCallPanic  ErrorCode = "REMOTE_CALL_PANIC"

	// Routing errors
	ErrCodeNoRoute ErrorCode = "NO_ROUTE"

	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"
	ErrCodeMissingPolicy  ErrorCode = "MISSING_POLICY"
	ErrCodeDuplicateRoute ErrorCode = "DUPLICATE_ROUTE"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

var codeClasses = map[ErrorCode]Class{
	ErrCodeTransportHandshake: ClassTransport,
	ErrCodeTransportClosed:    ClassTransport,
	ErrCodeMalformedFrame:     ClassTransport,
	ErrCodeRemoteCallFailed:   ClassRemoteCall,
	ErrCodeRemoteCallPanic:    ClassRemoteCall,
	ErrCodeNoRoute:            ClassRouting,
	ErrCodeConfigNotFound:     ClassConfiguration,
	ErrCodeConfigInvalid:      ClassConfiguration,
	ErrCodeMissingPolicy:      ClassConfiguration,
	ErrCodeDuplicateRoute:     ClassConfiguration,
}

// Class returns the propagation class of the code.
func (c ErrorCode) Class() Class {
	if class, ok := codeClasses[c]; ok {
		return class
	}
	return ClassInternal
}

// SyncError represents a structured error with context
type SyncError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *SyncError) WithDetail(key string, value interface{}) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *SyncError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new SyncError
func New(code ErrorCode, message string) *SyncError {
	return &SyncError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a SyncError
func Wrap(err error, code ErrorCode, message string) *SyncError {
	return &SyncError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific SyncError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	syncErr, ok := err.(*SyncError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if syncErr.Code == code {
		return true
	}
	// A SyncError may itself wrap another coded error.
	return Is(syncErr.Cause, code)
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	syncErr, ok := err.(*SyncError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return syncErr.Code
}

// IsClass reports whether the outermost code of err belongs to class.
func IsClass(err error, class Class) bool {
	code := GetCode(err)
	return code != "" && code.Class() == class
}
