package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var journalPriorities = map[Level]journal.Priority{
	LevelDebug: journal.PriDebug,
	LevelInfo:  journal.PriInfo,
	LevelWarn:  journal.PriWarning,
	LevelError: journal.PriErr,
}

const journalIdentifier = "glowping"

// Logger provides structured logging
type Logger struct {
	level   Level
	output  io.Writer
	journal bool
	now     func() time.Time
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Options selects where log entries go.
type Options struct {
	Level      string
	File       string // empty writes to stderr
	MaxSizeMB  int
	MaxBackups int
	Journal    bool
}

// NewLogger creates a new logger with the specified level
func NewLogger(level Level) *Logger {
	return &Logger{
		level:  level,
		output: os.Stderr,
		now:    time.Now,
	}
}

// Open builds a logger from options. The returned closer releases the log
// file and is a no-op when logging to stderr.
func Open(opts Options) (*Logger, io.Closer) {
	l := NewLogger(ParseLevel(opts.Level))
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			LocalTime:  true,
		}
		l.output = file
		closer = file
	}
	l.journal = opts.Journal && journal.Enabled()
	return l, closer
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := NewLogger(LevelError + 1)
	l.output = io.Discard
	return l
}

// SetOutput sets the output writer for the logger
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

// log writes a structured log entry
func (l *Logger) log(level Level, message string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: l.now().Format(time.RFC3339),
		Level:     levelNames[level],
		Message:   message,
		Fields:    fields,
	}

	if l.journal {
		l.send(level, message, fields)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		fmt.Fprintf(l.output, "[%s] %s: %s\n", entry.Timestamp, entry.Level, message)
		return
	}

	fmt.Fprintln(l.output, string(data))
}

func (l *Logger) send(level Level, message string, fields map[string]interface{}) {
	vars := map[string]string{"SYSLOG_IDENTIFIER": journalIdentifier}
	for key, val := range fields {
		vars[journalField(key)] = fmt.Sprint(val)
	}
	if err := journal.Send(message, journalPriorities[level], vars); err != nil {
		fmt.Fprintf(os.Stderr, "journal send failed: %v\n", err)
	}
}

// journalField maps a field name onto the journal's [A-Z0-9_] alphabet.
func journalField(key string) string {
	upper := strings.ToUpper(key)
	b := make([]byte, 0, len(upper))
	for i := 0; i < len(upper); i++ {
		c := upper[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b = append(b, c)
		} else {
			b = append(b, '_')
		}
	}
	if len(b) == 0 || b[0] == '_' {
		b = append([]byte("F"), b...)
	}
	return string(b)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(LevelDebug, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(LevelInfo, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(LevelWarn, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(LevelError, message, fields)
}

// LogProbeResult logs one probe attempt.
func (l *Logger) LogProbeResult(target string, attempt int, success bool, lossPercent float64, rtt time.Duration, diagnostic string) {
	fields := map[string]interface{}{
		"target":       target,
		"attempt":      attempt,
		"success":      success,
		"loss_percent": lossPercent,
		"rtt_ms":       rtt.Milliseconds(),
	}

	if success {
		l.Info("probe result", fields)
		return
	}
	fields["diagnostic"] = strings.TrimSpace(diagnostic)
	l.Warn("probe lost packets", fields)
}

// LogCycle logs the outcome of a completed cycle.
func (l *Logger) LogCycle(slot int, hitRate float64, success bool, state string) {
	l.Info("cycle complete", map[string]interface{}{
		"slot":     slot,
		"hit_rate": hitRate,
		"success":  success,
		"state":    state,
	})
}

// LogStateRecovery logs a state log that could not be used and was replaced by an empty state.
func (l *Logger) LogStateRecovery(path string, line string, err error) {
	fields := map[string]interface{}{
		"path": path,
	}
	if line != "" {
		fields["line"] = line
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Warn("previous state unusable, starting cold", fields)
}

// LogConfigLoad logs a config load event
func (l *Logger) LogConfigLoad(success bool, path string, err error) {
	fields := map[string]interface{}{
		"path": path,
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	if success {
		l.Info("config loaded", fields)
	} else {
		l.Error("config load failed", fields)
	}
}

// LogError logs a general error
func (l *Logger) LogError(component string, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["component"] = component
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error("error occurred", fields)
}

// ParseLevel parses a log level string
func ParseLevel(levelStr string) Level {
	switch levelStr {
	case "DEBUG", "debug":
		return LevelDebug
	case "INFO", "info":
		return LevelInfo
	case "WARN", "warn", "WARNING", "warning":
		return LevelWarn
	case "ERROR", "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
