package power

import (
	"runtime"
	"time"

	"github.com/procwatt/procwatt/internal/errors"
	"github.com/procwatt/procwatt/internal/proc"
	"github.com/procwatt/procwatt/internal/tracker"
)

// Attribution selects how a CPU time delta is converted into watts.
type Attribution string

const (
	// AttributionCPUTime charges a share of the configured total draw
	// proportional to the fraction of total host CPU capacity the process
	// used: watts = totalDraw * (cpuΔ / wallΔ) / cores.
	AttributionCPUTime Attribution = "cpu-time"

	// AttributionCPUTimePerCore charges per-core power for the cores the
	// process kept busy, capped at one core:
	// watts = (totalDraw / cores) * min(cpuΔ / wallΔ, 1).
	AttributionCPUTimePerCore Attribution = "cpu-time-per-core"
)

// IsValid returns whether the attribution mode is recognized
func (a Attribution) IsValid() bool {
	switch a {
	case AttributionCPUTime, AttributionCPUTimePerCore:
		return true
	default:
		return false
	}
}

const defaultTotalDrawWatts = 35.0

// Config parameterizes the cost model. TotalDrawWatts is an operator-supplied
// constant such as the CPU's TDP; the model assumes uniform power per unit of
// CPU time and makes no attempt to account for frequency or power states,
// which biases estimates high on lightly loaded cores.
type Config struct {
	TotalDrawWatts float64
	CoreCount      int
	Attribution    Attribution
}

func DefaultConfig() Config {
	return Config{
		TotalDrawWatts: defaultTotalDrawWatts,
		CoreCount:      runtime.NumCPU(),
		Attribution:    AttributionCPUTime,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.TotalDrawWatts <= 0 {
		return errFactory.WithData(ErrInvalidConfig, c.TotalDrawWatts)
	}
	if c.CoreCount < 1 {
		return errFactory.WithData(ErrInvalidConfig, c.CoreCount)
	}
	if !c.Attribution.IsValid() {
		return errFactory.WithData(ErrInvalidConfig, string(c.Attribution))
	}
	return nil
}

// Estimate is the power attributed to one process for one tick.
type Estimate struct {
	ID     proc.ID
	Name   string
	Watts  float64
	Joules float64 // energy over the tick's wall interval
	At     time.Time
}

// Model converts CPU time deltas into power estimates. Implementations are
// stateless so alternative attribution strategies can be swapped in without
// touching the tracker or the sampler.
type Model interface {
	Estimate(d tracker.Delta, at time.Time) (Estimate, error)
}

type proportional struct {
	cfg Config
}

// NewModel returns the proportional model for the configured attribution
// mode.
func NewModel(cfg Config) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &proportional{cfg: cfg}, nil
}

func (m *proportional) Estimate(d tracker.Delta, at time.Time) (Estimate, error) {
	errFactory := errors.New()

	elapsed := d.Elapsed.Seconds()
	if elapsed <= 0 {
		return Estimate{}, errFactory.WithData(ErrInvalidInterval, d.Elapsed)
	}

	utilization := d.CPUTime / elapsed
	cores := float64(m.cfg.CoreCount)

	var watts float64
	switch m.cfg.Attribution {
	case AttributionCPUTimePerCore:
		share := utilization
		if share > 1 {
			share = 1
		}
		watts = m.cfg.TotalDrawWatts / cores * share
	default:
		watts = m.cfg.TotalDrawWatts * utilization / cores
	}

	return Estimate{
		ID:     d.ID,
		Name:   d.Name,
		Watts:  watts,
		Joules: watts * elapsed,
		At:     at,
	}, nil
}
