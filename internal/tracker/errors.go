package tracker

import "github.com/procwatt/procwatt/internal/errors"

const ErrCounterDiscontinuity = errors.ErrCounterDiscontinuity
