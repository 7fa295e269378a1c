// Structured logging
//
// Loggers carry a component prefix and share one output core, so the
// level, format and writer chosen at startup apply to every logger
// handed out by GetLogger, including those created before configuration.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel is the severity of a message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < DEBUG || l > ERROR {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel parses a level name, defaulting to INFO
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// OutputFormat selects text or JSON lines
type OutputFormat int

const (
	FormatText OutputFormat = iota
	FormatJSON
)

// ParseFormat parses "text" or "json"
func ParseFormat(s string) (OutputFormat, bool) {
	switch strings.ToLower(s) {
	case "text":
		return FormatText, true
	case "json":
		return FormatJSON, true
	}
	return FormatText, false
}

// Fields are structured key/value pairs attached to a message
type Fields map[string]interface{}

var ansiColors = [...]string{
	DEBUG: "\x1b[36m",
	INFO:  "\x1b[32m",
	WARN:  "\x1b[33m",
	ERROR: "\x1b[31m",
}

const ansiReset = "\x1b[0m"

// core is the output state shared by a logger and its descendants
type core struct {
	mu         sync.Mutex
	writer     io.Writer
	level      LogLevel
	format     OutputFormat
	timeFormat string
	colorize   bool
	caller     bool
}

// Logger writes leveled messages under a prefix
type Logger struct {
	prefix string
	c      *core
}

// New creates a logger with its own output core writing to stderr
func New(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		c: &core{
			writer:     os.Stderr,
			level:      INFO,
			timeFormat: "2006-01-02 15:04:05.000",
			colorize:   os.Getenv("NO_COLOR") == "",
		},
	}
}

// WithPrefix returns a logger sharing the output core under another prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{prefix: prefix, c: l.c}
}

// Prefix returns the component prefix
func (l *Logger) Prefix() string { return l.prefix }

func (l *Logger) SetLevel(level LogLevel) {
	l.c.mu.Lock()
	l.c.level = level
	l.c.mu.Unlock()
}

func (l *Logger) GetLevel() LogLevel {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	return l.c.level
}

// Enabled reports whether messages at level are written
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.GetLevel()
}

func (l *Logger) SetWriter(w io.Writer) {
	l.c.mu.Lock()
	l.c.writer = w
	l.c.mu.Unlock()
}

func (l *Logger) SetFormat(f OutputFormat) {
	l.c.mu.Lock()
	l.c.format = f
	l.c.mu.Unlock()
}

func (l *Logger) SetTimeFormat(layout string) {
	l.c.mu.Lock()
	l.c.timeFormat = layout
	l.c.mu.Unlock()
}

func (l *Logger) SetColorize(enable bool) {
	l.c.mu.Lock()
	l.c.colorize = enable
	l.c.mu.Unlock()
}

// SetCaller adds file:line of the logging call to each message
func (l *Logger) SetCaller(enable bool) {
	l.c.mu.Lock()
	l.c.caller = enable
	l.c.mu.Unlock()
}

// callerDepth is the stack distance from output to the user's call
// through Logger.Info or Entry.Info
const callerDepth = 3

func (l *Logger) output(level LogLevel, msg string, fields Fields) {
	c := l.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < c.level {
		return
	}

	var caller string
	if c.caller {
		if _, file, line, ok := runtime.Caller(callerDepth); ok {
			caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		} else {
			caller = "unknown:0"
		}
	}

	var line string
	if c.format == FormatJSON {
		line = l.jsonLine(level, msg, caller, fields)
	} else {
		line = l.textLine(level, msg, caller, fields)
	}
	io.WriteString(c.writer, line)
}

func (l *Logger) textLine(level LogLevel, msg, caller string, fields Fields) string {
	var sb strings.Builder
	sb.WriteString(time.Now().Format(l.c.timeFormat))
	fmt.Fprintf(&sb, " [%-5s] ", level)
	if l.c.colorize {
		sb.WriteString(ansiColors[level])
		sb.WriteString(l.prefix)
		sb.WriteString(ansiReset)
	} else {
		sb.WriteString(l.prefix)
	}
	sb.WriteString(": ")
	sb.WriteString(msg)
	if caller != "" {
		sb.WriteString(" (" + caller + ")")
	}
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, fields[k])
		}
		sb.WriteByte('}')
	}
	sb.WriteByte('\n')
	return sb.String()
}

// JSONLogEntry is one line of JSON output
type JSONLogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Logger    string `json:"logger"`
	Message   string `json:"message"`
	Caller    string `json:"caller,omitempty"`
	Fields    Fields `json:"fields,omitempty"`
}

func (l *Logger) jsonLine(level LogLevel, msg, caller string, fields Fields) string {
	data, err := json.Marshal(JSONLogEntry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Level:     level.String(),
		Logger:    l.prefix,
		Message:   msg,
		Caller:    caller,
		Fields:    fields,
	})
	if err != nil {
		return fmt.Sprintf(`{"level":"ERROR","message":"marshal log entry: %v"}`+"\n", err)
	}
	return string(data) + "\n"
}

func (l *Logger) logf(level LogLevel, msg string, args []interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.output(level, msg, nil)
}

// Debug, Info, Warn and Error format msg with args when args are given.
func (l *Logger) Debug(msg string, args ...interface{}) { l.logf(DEBUG, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.logf(INFO, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.logf(WARN, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.logf(ERROR, msg, args) }

// WithField starts an entry with one field
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return &Entry{logger: l, fields: Fields{key: value}}
}

// WithFields starts an entry with a copy of fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return (&Entry{logger: l}).WithFields(fields)
}

// WithError starts an entry with the error field set
func (l *Logger) WithError(err error) *Entry {
	return l.WithField("error", err.Error())
}

// Entry is a message under construction with fields
type Entry struct {
	logger *Logger
	fields Fields
}

func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.WithFields(Fields{key: value})
}

func (e *Entry) WithFields(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{logger: e.logger, fields: merged}
}

func (e *Entry) WithError(err error) *Entry {
	return e.WithField("error", err.Error())
}

func (e *Entry) log(level LogLevel, msg string) {
	e.logger.output(level, msg, e.fields)
}

func (e *Entry) Debug(msg string) { e.log(DEBUG, msg) }
func (e *Entry) Info(msg string)  { e.log(INFO, msg) }
func (e *Entry) Warn(msg string)  { e.log(WARN, msg) }
func (e *Entry) Error(msg string) { e.log(ERROR, msg) }

// Environment variables read by ConfigureFromEnv
const (
	EnvLevel  = "FOC_LOG_LEVEL"
	EnvFormat = "FOC_LOG_FORMAT"
	EnvCaller = "FOC_LOG_CALLER"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger = newDefault()
)

func newDefault() *Logger {
	l := New("foc")
	ConfigureFromEnv(l)
	return l
}

// Default returns the root logger
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the root logger. Loggers obtained earlier keep
// the previous output core.
func SetDefaultLogger(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// GetLogger returns a component logger sharing the root logger's output
func GetLogger(prefix string) *Logger {
	return Default().WithPrefix(prefix)
}

// ConfigureFromEnv applies FOC_LOG_LEVEL (DEBUG, INFO, WARN, ERROR),
// FOC_LOG_FORMAT (text, json), FOC_LOG_CALLER (non-empty enables) and
// NO_COLOR (non-empty disables colors).
func ConfigureFromEnv(l *Logger) {
	if s := os.Getenv(EnvLevel); s != "" {
		l.SetLevel(ParseLevel(s))
	}
	if f, ok := ParseFormat(os.Getenv(EnvFormat)); ok {
		l.SetFormat(f)
	}
	if os.Getenv(EnvCaller) != "" {
		l.SetCaller(true)
	}
	if os.Getenv("NO_COLOR") != "" {
		l.SetColorize(false)
	}
}
