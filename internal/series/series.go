package series

import (
	"strconv"
	"time"

	"github.com/procwatt/procwatt/internal/power"
)

// Labels is the label set of one emitted series. Empty values mean the label
// is not included under the active policy.
type Labels struct {
	PID  string
	Name string
}

// Key returns a stable identity for the label combination.
func (l Labels) Key() string {
	return "pid=" + l.PID + "|name=" + l.Name
}

// Series is one governed, label-bounded sample ready for a sink.
type Series struct {
	Labels Labels
	Watts  float64
	Joules float64
	At     time.Time
}

func labelsFor(e power.Estimate, p Policy) Labels {
	var l Labels
	if p.IncludePID {
		l.PID = strconv.FormatInt(int64(e.ID.PID), 10)
	}
	if p.IncludeName {
		l.Name = e.Name
	}
	return l
}
