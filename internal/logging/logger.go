// Package logging provides the leveled logging system for Glance.
// It supports component prefixes, structured fields, colored console output,
// and optional file logging for persistent debugging.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota // Detailed debugging information
	LevelInfo               // General operational information
	LevelWarn               // Warning conditions
	LevelError              // Error conditions
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// color returns the ANSI color code for each level.
func (l Level) color() string {
	switch l {
	case LevelDebug:
		return "\033[36m" // Cyan
	case LevelInfo:
		return "\033[32m" // Green
	case LevelWarn:
		return "\033[33m" // Yellow
	case LevelError:
		return "\033[31m" // Red
	default:
		return "\033[0m"
	}
}

// ParseLevel parses a string into a Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the main logging instance for Glance.
type Logger struct {
	mu         sync.Mutex
	level      Level
	output     io.Writer
	fileOutput io.Writer
	file       *os.File
	colored    bool
	showCaller bool
	component  string
	fields     map[string]any
}

// Config configures logger behavior.
type Config struct {
	Level      Level  // Minimum level to log
	FilePath   string // Optional file path for persistent logs
	Colored    bool   // Enable colored console output
	ShowCaller bool   // Show file:line of the caller
	Component  string // Component name prefix
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:   LevelInfo,
		Colored: true,
	}
}

// New creates a new Logger instance.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{
		level:      cfg.Level,
		output:     os.Stderr,
		colored:    cfg.Colored,
		showCaller: cfg.ShowCaller,
		component:  cfg.Component,
		fields:     make(map[string]any),
	}

	if cfg.FilePath != "" {
		if err := l.SetFileOutput(cfg.FilePath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to open log file: %v\n", err)
		}
	}

	return l
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

func init() {
	globalLogger = New(DefaultConfig())
}

// SetGlobal sets the global logger instance.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Global returns the global logger instance.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLevel sets the global log level.
func SetLevel(level Level) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger.level = level
}

// DisableConsoleOutput disables console output, logging only to file.
// Called when a front-end shell owns the terminal.
func DisableConsoleOutput() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger.output = io.Discard
}

// SetFileOutput sets up file logging.
func (l *Logger) SetFileOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	if l.file != nil {
		l.file.Close()
	}

	l.file = f
	l.fileOutput = f
	return nil
}

// Close closes any open file handles.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.fileOutput = nil
		return err
	}
	return nil
}

// WithComponent returns a new logger with a component prefix.
func (l *Logger) WithComponent(name string) *Logger {
	return l.clone(func(n *Logger) { n.component = name })
}

// WithField returns a new logger with an additional field.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.clone(func(n *Logger) { n.fields[key] = value })
}

// WithFields returns a new logger with additional fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return l.clone(func(n *Logger) {
		for k, v := range fields {
			n.fields[k] = v
		}
	})
}

// clone copies the logger and applies a mutation to the copy.
func (l *Logger) clone(mutate func(*Logger)) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := &Logger{
		level:      l.level,
		output:     l.output,
		fileOutput: l.fileOutput,
		file:       l.file,
		colored:    l.colored,
		showCaller: l.showCaller,
		component:  l.component,
		fields:     make(map[string]any, len(l.fields)),
	}
	for k, v := range l.fields {
		n.fields[k] = v
	}
	mutate(n)
	return n
}

// log is the internal logging method.
func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var sb strings.Builder
	reset := "\033[0m"

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	if l.colored {
		sb.WriteString("\033[90m")
		sb.WriteString(timestamp)
		sb.WriteString(reset)
		sb.WriteString(" ")
	} else {
		sb.WriteString(timestamp)
		sb.WriteString(" ")
	}

	if l.colored {
		sb.WriteString(level.color())
		sb.WriteString(fmt.Sprintf("%-5s", level.String()))
		sb.WriteString(reset)
		sb.WriteString(" ")
	} else {
		sb.WriteString(fmt.Sprintf("%-5s ", level.String()))
	}

	if l.component != "" {
		if l.colored {
			sb.WriteString("\033[94m")
		}
		sb.WriteString("[")
		sb.WriteString(l.component)
		sb.WriteString("]")
		if l.colored {
			sb.WriteString(reset)
		}
		sb.WriteString(" ")
	}

	if l.showCaller {
		if _, file, line, ok := runtime.Caller(2); ok {
			sb.WriteString(fmt.Sprintf("(%s:%d) ", filepath.Base(file), line))
		}
	}

	sb.WriteString(fmt.Sprintf(format, args...))

	if len(l.fields) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range l.fields {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString("}")
	}

	sb.WriteString("\n")

	output := sb.String()
	l.output.Write([]byte(output))

	// File output is written without colors.
	if l.fileOutput != nil {
		l.fileOutput.Write([]byte(stripANSI(output)))
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

// Debug logs a debug message using the global logger.
func Debug(format string, args ...any) {
	Global().Debug(format, args...)
}

// Info logs an info message using the global logger.
func Info(format string, args ...any) {
	Global().Info(format, args...)
}

// Warn logs a warning message using the global logger.
func Warn(format string, args ...any) {
	Global().Warn(format, args...)
}

// Error logs an error message using the global logger.
func Error(format string, args ...any) {
	Global().Error(format, args...)
}

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if s[i] == 'm' {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}

	return result.String()
}
