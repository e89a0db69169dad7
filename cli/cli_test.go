package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grovetools/statesync/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandlerMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "missing config",
			err:  errors.ConfigNotFound("/tmp"),
			want: "Configuration not found",
		},
		{
			name: "missing policy",
			err:  errors.MissingPolicy("samples.create"),
			want: "No concurrency policy for 'samples.create'",
		},
		{
			name: "handshake",
			err:  errors.HandshakeFailed("ws://localhost/ws", errors.New(errors.ErrCodeInternal, "refused")).WithDetail("status", 404),
			want: "answered with status 404",
		},
		{
			name: "plain error",
			err:  assert.AnError,
			want: "Error: " + assert.AnError.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &ErrorHandler{Out: &buf}
			assert.Same(t, tt.err, h.Handle(tt.err))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestErrorHandlerVerboseDetails(t *testing.T) {
	var buf bytes.Buffer
	h := &ErrorHandler{Out: &buf, Verbose: true}
	h.Handle(errors.DuplicateRoute("jobs.find"))
	assert.Contains(t, buf.String(), `"code": "DUPLICATE_ROUTE"`)
}

func TestRenderHelp(t *testing.T) {
	root := NewStandardCommand("statesync", "Sync things")
	sub := &cobra.Command{
		Use:     "call <kind>",
		Short:   "Run one command",
		Example: "# list samples\nstatesync call samples.find",
		RunE:    func(cmd *cobra.Command, args []string) error { return nil },
	}
	sub.Flags().String("term", "", "Search term")
	root.AddCommand(sub)

	var buf bytes.Buffer
	renderHelp(&buf, root, 60)
	out := buf.String()
	assert.Contains(t, out, "STATESYNC")
	assert.Contains(t, out, "COMMANDS")
	assert.Contains(t, out, "call")

	buf.Reset()
	renderHelp(&buf, sub, 60)
	out = buf.String()
	assert.Contains(t, out, "--term")
	assert.Contains(t, out, "EXAMPLES")
	assert.Contains(t, out, "statesync call samples.find")
}

func TestWrapText(t *testing.T) {
	wrapped := wrapText("one two three four five six", 10)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 10)
	}
	assert.Equal(t, "short\nlines", wrapText("short\nlines", 10))
}

func TestProgressReporterStepsWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf, "reads.fq")
	for _, v := range []float64{0, 0.05, 0.12, 0.5, 0.55, 1} {
		p.Update(v)
	}
	p.Done()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "reads.fq: 0%", lines[0])
	assert.Equal(t, "reads.fq: 10%", lines[1])
	assert.Equal(t, "reads.fq: 50%", lines[2])
	assert.Equal(t, "reads.fq: 100%", lines[3])
	assert.True(t, strings.HasPrefix(lines[4], "reads.fq finished in"))
}
