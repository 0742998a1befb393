package safops

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// verbosityLevels maps test verbosity to a level. Anything higher is trace.
var verbosityLevels = []zerolog.Level{zerolog.WarnLevel, zerolog.InfoLevel, zerolog.DebugLevel}

var pkgLogger atomic.Pointer[zerolog.Logger]

func init() {
	SetLogger(DefaultLogger())
}

// NewLogger returns a human readable logger writing to w. Every entry carries
// lib=safops.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	return zerolog.New(console).Level(level).With().Timestamp().Str("lib", "safops").Logger()
}

// NewTestLogger maps verbose 0..2 to warn, info and debug, and higher to trace.
func NewTestLogger(w io.Writer, verbose int) zerolog.Logger {
	level := zerolog.TraceLevel
	if verbose >= 0 && verbose < len(verbosityLevels) {
		level = verbosityLevels[verbose]
	}
	return NewLogger(w, level)
}

// LogLevelFromString parses a level name, ignoring case.
func LogLevelFromString(name string) (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(name))
}

// DefaultLogger logs warnings and errors to stderr.
func DefaultLogger() zerolog.Logger {
	return NewLogger(os.Stderr, zerolog.WarnLevel)
}

// Logger returns the package logger used when a Client is built without one.
func Logger() zerolog.Logger {
	return *pkgLogger.Load()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	pkgLogger.Store(&l)
}
