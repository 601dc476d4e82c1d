// Package logger provides the levelled logger shared by every component.
// Output goes to stdout or to a size-rotated log file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/natefinch/lumberjack"
)

// LogLevel - log level type
type LogLevel int

const (
	// LogDebug - DEBUG log level
	LogDebug LogLevel = iota

	// LogInfo - INFO log level
	LogInfo

	// LogError - ERROR log level (does not call os.Exit!)
	LogError
)

var logLevelPrefix = map[LogLevel]string{
	LogDebug: "DEBUG",
	LogInfo:  "INFO",
	LogError: "ERROR",
}

// ILogger - Generic logger interface
type ILogger interface {
	Printf(level LogLevel, format string, a ...interface{})
	Debugf(format string, a ...interface{})
	Infof(format string, a ...interface{})
	Errorf(format string, a ...interface{})
}

// Logger writes prefixed lines at or above its level
type Logger struct {
	mu       sync.Mutex
	out      *log.Logger
	logLevel LogLevel
	closer   io.Closer
}

// New creates a logger writing to w
func New(w io.Writer, level LogLevel) *Logger {
	return &Logger{
		out:      log.New(w, "", log.LstdFlags),
		logLevel: level,
	}
}

// NewStdOut creates a logger writing to stdout
func NewStdOut(level LogLevel) *Logger {
	return New(os.Stdout, level)
}

// NewRotating creates a logger saving to a rotating log file. maxSizeMB
// and maxAgeDays of zero use lumberjack's defaults (100 MB, no age limit).
func NewRotating(filename string, maxSizeMB, maxAgeDays int, level LogLevel) *Logger {
	lj := &lumberjack.Logger{
		Filename: filename,
		MaxSize:  maxSizeMB, // megabytes
		MaxAge:   maxAgeDays, // days
	}
	l := New(lj, level)
	l.closer = lj
	return l
}

func (l *Logger) Printf(level LogLevel, format string, a ...interface{}) {
	if level < l.GetLogLevel() {
		return
	}
	l.out.Println(logLevelPrefix[level] + ": " + fmt.Sprintf(format, a...))
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	l.Printf(LogDebug, format, a...)
}

func (l *Logger) Infof(format string, a ...interface{}) {
	l.Printf(LogInfo, format, a...)
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	l.Printf(LogError, format, a...)
}

func (l *Logger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	l.logLevel = level
	l.mu.Unlock()
}

func (l *Logger) GetLogLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logLevel
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// NullLogger - For mocking out in tests
type NullLogger struct{}

func (l NullLogger) Printf(level LogLevel, format string, a ...interface{}) {}
func (l NullLogger) Debugf(format string, a ...interface{})                  {}
func (l NullLogger) Infof(format string, a ...interface{})                   {}
func (l NullLogger) Errorf(format string, a ...interface{})                  {}
