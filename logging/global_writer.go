package logging

import (
	"io"
	"os"
	"sync"
)

// swappableWriter delegates to an underlying writer that can be replaced at runtime.
type swappableWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (sw *swappableWriter) Write(p []byte) (n int, err error) {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.w.Write(p)
}

func (sw *swappableWriter) Set(w io.Writer) io.Writer {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	prev := sw.w
	sw.w = w
	return prev
}

var defaultGlobalWriter = &swappableWriter{w: os.Stderr}

// SetGlobalOutput redirects the stderr sink of every logger and returns
// the previous destination.
func SetGlobalOutput(w io.Writer) io.Writer {
	return defaultGlobalWriter.Set(w)
}

// GetGlobalOutput returns the process-wide stderr sink.
func GetGlobalOutput() io.Writer {
	return defaultGlobalWriter
}
