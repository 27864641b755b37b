package power

import "github.com/procwatt/procwatt/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrInvalidInterval = errors.ErrInvalidInterval
)
