package utils

import (
	"log"
	"os"
	"strings"
	"time"
)

// LogLevel controls how much the connection core logs about its own
// packet and frame processing.
type LogLevel uint8

const (
	logEnv = "QUICCORE_LOG_LEVEL"

	// LogLevelNothing disables logging.
	LogLevelNothing LogLevel = 0
	// LogLevelError enables error logs.
	LogLevelError LogLevel = 1
	// LogLevelInfo enables info logs (e.g. packets).
	LogLevelInfo LogLevel = 2
	// LogLevelDebug enables debug logs (e.g. packet contents).
	LogLevelDebug LogLevel = 3
)

// Logger writes leveled log lines, optionally tagged with a chain of
// prefixes built up via WithPrefix. DefaultLogger is the package-wide
// instance most code should use.
type Logger struct {
	logLevel   LogLevel
	timeFormat string
	prefix     string
}

// DefaultLogger is configured from the QUICCORE_LOG_LEVEL environment
// variable at package init.
var DefaultLogger *Logger = NewLogger()

func NewLogger() *Logger {
	l := &Logger{}
	l.logLevel = readLoggingEnv()
	return l
}

// SetLogLevel sets the log level.
func (l *Logger) SetLogLevel(level LogLevel) { l.logLevel = level }

// SetLogTimeFormat sets the format of the timestamp; an empty string
// disables timestamp logging.
func (l *Logger) SetLogTimeFormat(format string) {
	log.SetFlags(0)
	l.timeFormat = format
}

// WithPrefix returns a new Logger that tags every line with prefix, nested
// under any prefix the parent already carries.
func (l *Logger) WithPrefix(prefix string) *Logger {
	if l.prefix != "" {
		prefix = l.prefix + " " + prefix
	}
	return &Logger{logLevel: l.logLevel, timeFormat: l.timeFormat, prefix: prefix}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.logLevel == LogLevelDebug {
		l.logMessage(format, args...)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.logLevel >= LogLevelInfo {
		l.logMessage(format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.logLevel >= LogLevelError {
		l.logMessage(format, args...)
	}
}

func (l *Logger) logMessage(format string, args ...interface{}) {
	if l.prefix != "" {
		format = l.prefix + ": " + format
	}
	if len(l.timeFormat) > 0 {
		log.Printf(time.Now().Format(l.timeFormat)+" "+format, args...)
	} else {
		log.Printf(format, args...)
	}
}

// Debug returns true if the log level is LogLevelDebug.
func (l *Logger) Debug() bool { return l.logLevel == LogLevelDebug }

func readLoggingEnv() LogLevel {
	env := os.Getenv(logEnv)
	switch strings.ToUpper(env) {
	case "":
		return LogLevelNothing
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelNothing
	}
}
