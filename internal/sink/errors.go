package sink

import "github.com/procwatt/procwatt/internal/errors"

const (
	// Configuration errors
	ErrInvalidDBPath = errors.ErrorCode("sink_invalid_db_path")

	// Storage errors
	ErrStorageInit      = errors.ErrorCode("sink_storage_init_failed")
	ErrStorageAccess    = errors.ErrorCode("sink_storage_access_failed")
	ErrStorageClose     = errors.ErrorCode("sink_storage_close_failed")
	ErrSchemaInitFailed = errors.ErrorCode("sink_schema_init_failed")
)
