package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/statesync/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

func detail(err error, key string) interface{} {
	if syncErr, ok := err.(*errors.SyncError); ok {
		return syncErr.Details[key]
	}
	return nil
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "Configuration not found. Create statesync.yml or pass --config.\n")

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "Invalid configuration: %v\n", err)
		fmt.Fprintf(h.Out, "Run 'statesync config schema' to see the accepted format.\n")

	case errors.ErrCodeMissingPolicy:
		fmt.Fprintf(h.Out, "No concurrency policy for '%v'.\n", detail(err, "kind"))
		fmt.Fprintf(h.Out, "Add it to the policies section of statesync.yml.\n")

	case errors.ErrCodeDuplicateRoute:
		fmt.Fprintf(h.Out, "Command kind '%v' is routed twice.\n", detail(err, "kind"))

	case errors.ErrCodeTransportHandshake:
		fmt.Fprintf(h.Out, "Could not open the push channel to %v.\n", detail(err, "url"))
		if status := detail(err, "status"); status != nil {
			fmt.Fprintf(h.Out, "The server answered with status %v.\n", status)
		}

	case errors.ErrCodeTransportClosed:
		fmt.Fprintf(h.Out, "The push channel closed unexpectedly: %v\n", err)

	case errors.ErrCodeRemoteCallFailed, errors.ErrCodeRemoteCallPanic:
		fmt.Fprintf(h.Out, "Remote call %v failed.\n", detail(err, "kind"))
		if status := detail(err, "status"); status != nil {
			fmt.Fprintf(h.Out, "The server answered with status %v.\n", status)
		}

	default:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
	}

	if h.Verbose {
		if syncErr, ok := err.(*errors.SyncError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", syncErr.ToJSON())
		}
	}
	return err
}
