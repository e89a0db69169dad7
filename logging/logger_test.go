package logging

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Same component returns the cached entry.
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestSetLevelReachesExistingLoggers(t *testing.T) {
	logger := NewLogger("level-test")
	prev := Level()
	t.Cleanup(func() { base.SetLevel(prev) })

	require.NoError(t, SetLevel("debug"))
	assert.True(t, logger.Logger.IsLevelEnabled(logrus.DebugLevel))

	require.NoError(t, SetLevel("error"))
	assert.False(t, logger.Logger.IsLevelEnabled(logrus.InfoLevel))

	assert.Error(t, SetLevel("loud"))
}

func TestConfigureAlwaysWritesToGlobalOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := SetGlobalOutput(&buf)
	t.Cleanup(func() {
		SetGlobalOutput(prev)
		Configure(Config{})
	})

	Configure(Config{
		Level:  "info",
		Format: FormatConfig{Preset: "simple", StructuredToStderr: "always"},
	})

	NewLogger("configure-test").Info("channel opened")
	assert.Contains(t, buf.String(), "[INFO] channel opened")
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "frame routed",
				Data: logrus.Fields{
					"component": "pushchannel",
					"interface": "jobs",
				},
			},
			want: []string{"[INFO]", "pushchannel", "frame routed", "interface=jobs"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "frame dropped",
				Data: logrus.Fields{
					"component": "pushchannel",
				},
			},
			want:    []string{"[WARN]", "frame dropped"},
			notWant: []string{"pushchannel"},
		},
		{
			name:   "caller information",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "dispatch",
					Data:    logrus.Fields{"component": "router"},
					Caller: &runtime.Frame{
						File:     "/path/to/router.go",
						Line:     42,
						Function: "github.com/grovetools/statesync/pkg/router.(*Router).Dispatch",
					},
				}
			}(),
			want: []string{"[router.go:42 router.(*Router).Dispatch]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			output, err := formatter.Format(tt.entry)
			require.NoError(t, err)

			for _, want := range tt.want {
				assert.Contains(t, string(output), want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, string(output), notWant)
			}
		})
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	output, err := formatter.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"zeta": 1, "alpha": 2, "mid": 3},
	})
	require.NoError(t, err)

	line := string(output)
	assert.True(t, strings.Index(line, "alpha=") < strings.Index(line, "mid="))
	assert.True(t, strings.Index(line, "mid=") < strings.Index(line, "zeta="))
}
