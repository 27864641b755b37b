package logger

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	DebugWithCode(err error) *LogEvent
	ErrorWithCode(err error) *LogEvent
	FatalWithCode(err error) *LogEvent
}
