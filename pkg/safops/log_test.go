package safops_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/safops/pkg/safops"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := safops.NewLogger(&buf, zerolog.InfoLevel)

	logger.Info().Msg("test message")
	logger.Debug().Msg("hidden")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected log output to contain 'test message', got: %s", output)
	}
	if strings.Contains(output, "hidden") {
		t.Errorf("Expected debug output to be filtered, got: %s", output)
	}
	if !strings.HasSuffix(strings.TrimSpace(output), "lib=safops") {
		t.Errorf("Expected log output to end with 'lib=safops', got: %s", output)
	}
}

func TestLogLevelFromString(t *testing.T) {
	testCases := []struct {
		levelStr string
		expected zerolog.Level
		wantErr  bool
	}{
		{"trace", zerolog.TraceLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"invalid", zerolog.NoLevel, true},
	}

	for _, tc := range testCases {
		t.Run(tc.levelStr, func(t *testing.T) {
			level, err := safops.LogLevelFromString(tc.levelStr)

			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for invalid level %q", tc.levelStr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if level != tc.expected {
				t.Errorf("Expected level %v, got %v", tc.expected, level)
			}
		})
	}
}

func TestNewTestLogger(t *testing.T) {
	testCases := []struct {
		verbose  int
		expected zerolog.Level
	}{
		{0, zerolog.WarnLevel},
		{1, zerolog.InfoLevel},
		{2, zerolog.DebugLevel},
		{3, zerolog.TraceLevel},
		{4, zerolog.TraceLevel},
	}

	for _, tc := range testCases {
		t.Run("verbose_"+string(rune(tc.verbose+'0')), func(t *testing.T) {
			var buf bytes.Buffer
			logger := safops.NewTestLogger(&buf, tc.verbose)
			if logger.GetLevel() != tc.expected {
				t.Errorf("Expected level %v for verbose %d, got %v", tc.expected, tc.verbose, logger.GetLevel())
			}
		})
	}
}

func TestSetLogger(t *testing.T) {
	previous := safops.Logger()
	defer safops.SetLogger(previous)

	var buf bytes.Buffer
	safops.SetLogger(safops.NewLogger(&buf, zerolog.InfoLevel))
	l := safops.Logger()
	l.Info().Msg("through the package logger")

	if !strings.Contains(buf.String(), "through the package logger") {
		t.Errorf("Expected package logger to write to the buffer, got: %s", buf.String())
	}
}
