// Package logging provides a small leveled logger that is passed down
// explicitly through the pipeline instead of being retrieved from
// global state. Per-run loggers carry a prefix identifying the item
// being processed so that interleaved concurrent output stays readable.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes leveled messages to stdout/stderr and optionally to a
// log file. The zero value is not usable; create one with NewLogger.
type Logger struct {
	mu      *sync.Mutex
	out     io.Writer
	errOut  io.Writer
	file    *os.File
	prefix  string
	verbose bool
}

// NewLogger creates a logger. When logFile is non-empty the directory
// is created and all messages are appended to the file as well.
// Call Close when done if a log file was set.
func NewLogger(verbose bool, logFile string) (*Logger, error) {
	l := &Logger{
		mu:      &sync.Mutex{},
		out:     os.Stdout,
		errOut:  os.Stderr,
		verbose: verbose,
	}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("error creating log directory: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		l.file = f
	}

	return l, nil
}

// Discard returns a logger that writes nowhere. Useful in tests.
func Discard() *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		out:    io.Discard,
		errOut: io.Discard,
	}
}

// WithPrefix returns a logger that prepends the given prefix to every
// message. The returned logger shares the sinks and mutex of its
// parent, so concurrent use from multiple runs is safe.
func (l *Logger) WithPrefix(prefix string) *Logger {
	clone := *l
	if l.prefix != "" {
		clone.prefix = l.prefix + " " + prefix
	} else {
		clone.prefix = prefix
	}
	return &clone
}

// Close releases the file sink if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) {
	l.write(l.out, "INFO", format, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...any) {
	l.write(l.errOut, "WARN", format, args...)
}

// Error logs an error.
func (l *Logger) Error(format string, args ...any) {
	l.write(l.errOut, "ERROR", format, args...)
}

// Debug logs a message only when verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.write(l.out, "DEBUG", format, args...)
}

func (l *Logger) write(w io.Writer, level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s [%s]", time.Now().Format("15:04:05"), level)
	if l.prefix != "" {
		line += " [" + l.prefix + "]"
	}
	line += " " + msg + "\n"

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(w, line)
	if l.file != nil {
		fmt.Fprint(l.file, line)
	}
}
