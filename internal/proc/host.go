package proc

import (
	"os"
	"runtime"
	"strconv"
)

// HostInfo describes the sampled host. It is collected once at startup and
// attached to exposed series as static labels.
type HostInfo struct {
	Hostname     string
	Cores        int
	JiffySeconds float64
}

// Host collects host metadata. Failures degrade to "unknown" values rather
// than blocking startup.
func Host() HostInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return HostInfo{
		Hostname:     hostname,
		Cores:        runtime.NumCPU(),
		JiffySeconds: 1.0 / float64(ClockTicks()),
	}
}

// Labels renders host metadata as sink labels.
func (h HostInfo) Labels() map[string]string {
	return map[string]string{
		"hostname":      h.Hostname,
		"cores":         strconv.Itoa(h.Cores),
		"jiffy_seconds": strconv.FormatFloat(h.JiffySeconds, 'g', -1, 64),
	}
}
