package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Lifecycle errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Sampling errors
	ErrSourceUnavailable    ErrorCode = "source_unavailable"
	ErrCounterDiscontinuity ErrorCode = "counter_discontinuity"
	ErrSeriesOverflow       ErrorCode = "series_overflow"
	ErrSinkUnavailable      ErrorCode = "sink_unavailable"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:             "Internal error occurred",
	ErrInvalidArgument:      "Invalid argument provided",
	ErrUnavailable:          "Service unavailable",
	ErrAlreadyRunning:       "Another instance is already running",
	ErrInvalidConfig:        "Invalid configuration",
	ErrBindFlags:            "Failed to bind flags",
	ErrReadConfig:           "Failed to read configuration",
	ErrInvalidInterval:      "Invalid interval value",
	ErrInvalidLogLevel:      "Invalid log level",
	ErrInitFailed:           "Initialization failed",
	ErrShutdownFailed:       "Shutdown failed",
	ErrSourceUnavailable:    "Process snapshot source unavailable",
	ErrCounterDiscontinuity: "CPU time counter moved backwards",
	ErrSeriesOverflow:       "Series cardinality ceiling reached",
	ErrSinkUnavailable:      "Metrics sink unavailable",
	ErrOperationFailed:      "Operation failed",
	ErrTimeout:              "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
