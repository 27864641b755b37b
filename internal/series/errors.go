package series

import "github.com/procwatt/procwatt/internal/errors"

const (
	ErrInvalidPolicy  = errors.ErrInvalidConfig
	ErrSeriesOverflow = errors.ErrSeriesOverflow
)
