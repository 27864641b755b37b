package logger

import (
	"os"
	"syscall"
	"time"

	"github.com/procwatt/procwatt/internal/errors"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger based on the given configuration. The debug
// and verbose flags take precedence over the configured level.
func Init(level string, debug, verbose, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	switch {
	case debug:
		SetLogLevel(DebugLevel)
	case verbose:
		SetLogLevel(InfoLevel)
	default:
		SetLogLevel(parseLevel(level))
	}
}

func parseLevel(level string) LogLevel {
	switch level {
	case "debug":
		return DebugLevel
	case "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// DebugWithCode logs a debug message with its domain error code
func DebugWithCode(err error) *LogEvent {
	return withCode(log.Debug(), err)
}

// ErrorWithCode logs an error message with its domain error code
func ErrorWithCode(err error) *LogEvent {
	return withCode(log.Error(), err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with its domain error code and exits
func FatalWithCode(err error) *LogEvent {
	return withCode(log.Fatal(), err)
}

func withCode(ev *zerolog.Event, err error) *LogEvent {
	var domainErr errors.Error
	if errors.As(err, &domainErr) {
		return &LogEvent{ev.
			Str("error_code", string(domainErr.Code())).
			Str("error_message", domainErr.Error())}
	}

	return &LogEvent{ev.Err(err)}
}
