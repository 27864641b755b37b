package sampler

import "github.com/procwatt/procwatt/internal/errors"

const ErrInvalidInterval = errors.ErrInvalidInterval
