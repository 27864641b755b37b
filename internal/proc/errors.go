package proc

import "github.com/procwatt/procwatt/internal/errors"

const (
	ErrSourceUnavailable = errors.ErrSourceUnavailable
	ErrMalformedStat     = errors.ErrorCode("proc_malformed_stat")
)
