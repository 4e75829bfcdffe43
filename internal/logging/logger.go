package logging

// Structured logging for brushrig

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

var levelNames = map[LogLevel]string{
	LogLevelSilent:  "SILENT",
	LogLevelError:   "ERROR",
	LogLevelInfo:    "INFO",
	LogLevelVerbose: "VERBOSE",
	LogLevelDebug:   "DEBUG",
}

// ParseLevel converts a config string to a LogLevel. Empty means info.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LogLevelInfo, nil
	case "silent", "off":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "verbose":
		return LogLevelVerbose, nil
	case "debug":
		return LogLevelDebug, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Options configures a Logger.
type Options struct {
	Level  LogLevel
	File   string
	Format string // "text" or "json"
	// Console disables all terminal output when false, for callers that own
	// the terminal (the TUI). Errors still reach the log file.
	Console bool
}

// Logger provides structured logging
type Logger struct {
	mu      sync.Mutex
	level   LogLevel
	format  string
	console bool
	file    *os.File
	fileLog *zerolog.Logger
	stdout  zerolog.Logger
	stderr  zerolog.Logger
}

// NewLogger creates a new text logger that writes to the terminal and,
// if logFile is set, to that file.
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	return NewLoggerWithOptions(Options{Level: level, File: logFile, Format: "text", Console: true})
}

// NewLoggerWithOptions creates a new logger from explicit options.
func NewLoggerWithOptions(opts Options) (*Logger, error) {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	l := &Logger{
		level:   opts.Level,
		format:  format,
		console: opts.Console,
		stdout:  newZerolog(os.Stdout, format, false),
		stderr:  newZerolog(os.Stderr, format, false),
	}

	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = file
		fileLog := newZerolog(file, format, true)
		l.fileLog = &fileLog
	}

	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{
		level:  LogLevelSilent,
		format: "text",
		stdout: zerolog.Nop(),
		stderr: zerolog.Nop(),
	}
}

func newZerolog(w io.Writer, format string, timestamps bool) zerolog.Logger {
	if format == "json" {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.RFC3339,
		PartsOrder: []string{zerolog.MessageFieldName},
	}
	if timestamps {
		cw.PartsOrder = []string{zerolog.TimestampFieldName, zerolog.MessageFieldName}
		return zerolog.New(cw).With().Timestamp().Logger()
	}
	return zerolog.New(cw)
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.fileLog = nil
		return err
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.emit(LogLevelError, fmt.Sprintf(format, v...))
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.emit(LogLevelInfo, fmt.Sprintf(format, v...))
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	l.emit(LogLevelVerbose, fmt.Sprintf(format, v...))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.emit(LogLevelDebug, fmt.Sprintf(format, v...))
}

func (l *Logger) emit(level LogLevel, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level < level {
		return
	}

	if l.fileLog != nil {
		l.write(*l.fileLog, level, msg)
	}
	if !l.console {
		return
	}

	// Errors go to stderr, others to stdout only when verbose or debug
	if level == LogLevelError {
		l.write(l.stderr, level, msg)
	} else if l.level >= LogLevelVerbose {
		l.write(l.stdout, level, msg)
	}
}

func (l *Logger) write(zl zerolog.Logger, level LogLevel, msg string) {
	if l.format == "json" {
		ev := zl.WithLevel(zerologLevel(level))
		if level >= LogLevelVerbose {
			ev = ev.Str("verbosity", strings.ToLower(levelNames[level]))
		}
		ev.Msg(msg)
		return
	}
	zl.Log().Msg(levelNames[level] + ": " + msg)
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogMessage logs one frame exchanged with the rig controller
func (l *Logger) LogMessage(direction, msgType string, size int, err error) {
	if msgType == "" {
		msgType = "-"
	}
	if err != nil {
		l.Info("FAILED %s type=%s bytes=%d - error: %v", direction, msgType, size, err)
		return
	}
	l.Verbose("%s type=%s bytes=%d", direction, msgType, size)
}

// LogStateChange logs a connection state transition
func (l *Logger) LogStateChange(from, to string, attempt int) {
	if attempt > 0 {
		l.Info("connection %s -> %s (attempt %d)", from, to, attempt)
		return
	}
	l.Info("connection %s -> %s", from, to)
}

// LogStartup logs startup information
func (l *Logger) LogStartup(url string, rows int, storePath, configPath string) {
	l.Info("Starting brushrig panel")
	l.Verbose("  Device: %s", url)
	l.Verbose("  Rows: %d", rows)
	l.Verbose("  Store: %s", storePath)
	l.Verbose("  Config: %s", configPath)
}
