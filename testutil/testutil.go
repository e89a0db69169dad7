// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grovetools/statesync/internal/devserver"
	"github.com/sirupsen/logrus"
)

// QuietLogger returns a logger that drops everything below panic.
func QuietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

// StartDevServer runs an in-memory development server for the duration of
// the test. Push clients are disconnected before the listener closes.
func StartDevServer(t *testing.T) (*devserver.Server, *httptest.Server) {
	t.Helper()

	dev := devserver.New(QuietLogger())
	srv := httptest.NewServer(dev.Handler())
	t.Cleanup(func() {
		dev.DisconnectAll()
		srv.Close()
	})
	return dev, srv
}

// WSURL converts the URL of an httptest server to its websocket form.
func WSURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// WriteFile writes content below dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}
