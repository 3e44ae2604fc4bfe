// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/termenv"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// levelColors maps a level tag to an ANSI colour index.
var levelColors = map[string]string{ //nolint:gochecknoglobals
	"ERR": "1", // red
	"WRN": "3", // yellow
	"INF": "2", // green
	"VRB": "4", // blue
	"DBG": "8", // bright black
}

// Logger writes levelled status lines to stderr with optional
// timestamps, level prefixes and colour.
type Logger struct {
	level      LogLevel
	output     io.Writer
	color      *termenv.Output // nil → plain text
	mu         sync.Mutex
	timestamps bool // if true, prepend wall-clock timestamps
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
	}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) { l.timestamps = on }

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) { l.output = w }

// SetColor colours each line by level using the given terminal output.
// Pass nil, or an output with the Ascii profile, to disable colour.
func (l *Logger) SetColor(out *termenv.Output) {
	if out != nil && out.Profile == termenv.Ascii {
		out = nil
	}
	l.color = out
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("INF", format, args...)
	}
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("WRN", format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.write("VRB", format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.write("DBG", format, args...)
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERR", format, args...)
}

func (l *Logger) write(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...))
	if l.timestamps {
		line = time.Now().Format("15:04:05.000") + " " + line
	}
	if l.color != nil {
		line = l.color.String(line).Foreground(l.color.Color(levelColors[level])).String()
	}
	fmt.Fprintln(l.output, line)
}
