package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger handles debug logging to file and stderr.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	enabled bool
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Get returns the default logger instance.
func Get() *Logger {
	once.Do(func() {
		defaultLogger = &Logger{}
		defaultLogger.init()
	})
	return defaultLogger
}

func (l *Logger) init() {
	// Debug mode is enabled via env var or a marker file
	debugEnv := os.Getenv("QUILL_DEBUG")

	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "quill log: failed to get home dir: %v\n", err)
		return
	}

	debugMarker := filepath.Join(home, ".quill", "debug")
	_, markerErr := os.Stat(debugMarker)
	markerExists := markerErr == nil

	if debugEnv != "1" && !markerExists {
		l.enabled = false
		return
	}

	logsDir := filepath.Join(home, ".quill", "logs")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logsDir, fmt.Sprintf("quill-%s.log", timestamp))
	if err := l.open(logPath); err != nil {
		fmt.Fprintf(os.Stderr, "quill log: %v\n", err)
		return
	}

	// Log how debugging was enabled
	if debugEnv == "1" {
		l.logf("INFO", "Logging started (QUILL_DEBUG=1)")
	} else {
		l.logf("INFO", "Logging started (~/.quill/debug exists)")
	}
	l.logf("INFO", "Log file: %s", logPath)
}

func (l *Logger) open(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create logs dir %s: %w", filepath.Dir(path), err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	l.file = file
	l.enabled = true
	return nil
}

// EnableFile turns on logging to the given path. Used when the config
// file carries a debug_file entry; a no-op if logging is already active.
func (l *Logger) EnableFile(path string) {
	l.mu.Lock()
	already := l.enabled
	l.mu.Unlock()
	if already || path == "" {
		return
	}
	if err := l.open(path); err != nil {
		fmt.Fprintf(os.Stderr, "quill log: %v\n", err)
		return
	}
	l.logf("INFO", "Logging started (config debug_file)")
}

// Enabled returns whether debug logging is enabled.
func (l *Logger) Enabled() bool {
	return l.enabled
}

func (l *Logger) logf(level, format string, args ...any) {
	if l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.file, "[%s] %s [core]: %s\n", timestamp, level, msg)
}

// Debug logs a debug message (file only).
func (l *Logger) Debug(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.logf("DEBUG", format, args...)
}

// Info logs an info message (file only).
func (l *Logger) Info(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.logf("INFO", format, args...)
}

// Error logs an error message (file and stderr).
func (l *Logger) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "quill error: %s\n", msg)
	if l.enabled {
		l.logf("ERROR", format, args...)
	}
}

// Request logs an incoming bridge request.
func (l *Logger) Request(op string, raw string) {
	if !l.enabled {
		return
	}
	l.logf("REQ", "[%s] %s", op, truncate(raw, 500))
}

// Response logs an outgoing bridge response.
func (l *Logger) Response(msgType string, raw string) {
	if !l.enabled {
		return
	}
	l.logf("RESP", "[%s] %s", msgType, truncate(raw, 500))
}

// Stream logs a streaming frame event.
func (l *Logger) Stream(eventType string, content string) {
	if !l.enabled {
		return
	}
	l.logf("STREAM", "[%s] %s", eventType, truncate(content, 200))
}

// Close closes the log file.
func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close()
	}
}

// Writer returns an io.Writer for the log file (for external use).
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return io.Discard
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
