package series

import (
	"github.com/procwatt/procwatt/internal/errors"
	"github.com/procwatt/procwatt/internal/logger"
	"github.com/procwatt/procwatt/internal/power"
)

// Strategy decides what happens to an estimate whose label combination would
// exceed the series ceiling.
type Strategy string

const (
	// StrategyKeepFirst keeps the first MaxSeries label combinations ever
	// seen and drops everything new after that.
	StrategyKeepFirst Strategy = "keep-first"

	// StrategyAggregateByName folds overflowing estimates into a per-name
	// bucket with the PID label removed.
	StrategyAggregateByName Strategy = "aggregate-by-name"
)

// IsValid returns whether the strategy is recognized
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyKeepFirst, StrategyAggregateByName:
		return true
	default:
		return false
	}
}

const defaultMaxSeries = 1024

// Policy bounds the label cardinality of the emitted stream. With the PID
// label enabled, every process instance ever observed is a distinct series,
// which grows without bound over the daemon's lifetime; MaxSeries puts a
// ceiling on that.
type Policy struct {
	IncludePID  bool
	IncludeName bool
	MaxSeries   int // 0 disables the ceiling
	Collision   Strategy
}

func DefaultPolicy() Policy {
	return Policy{
		IncludePID:  true,
		IncludeName: true,
		MaxSeries:   defaultMaxSeries,
		Collision:   StrategyKeepFirst,
	}
}

func (p Policy) Validate() error {
	errFactory := errors.New()

	if p.MaxSeries < 0 {
		return errFactory.WithData(ErrInvalidPolicy, p.MaxSeries)
	}
	if !p.Collision.IsValid() {
		return errFactory.WithData(ErrInvalidPolicy, string(p.Collision))
	}
	return nil
}

// Governor applies a Policy to the estimate stream. It remembers every label
// combination it has admitted for the lifetime of the process, so the
// ceiling is global, not per tick. Like the tracker it expects a single
// caller.
type Governor struct {
	policy   Policy
	admitted map[string]struct{}
	overflow uint64
}

func NewGovernor(policy Policy) (*Governor, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Governor{
		policy:   policy,
		admitted: make(map[string]struct{}),
	}, nil
}

// Project maps one estimate to its governed series. The second return value
// is false when the estimate is dropped by the keep-first strategy.
func (g *Governor) Project(e power.Estimate) (Series, bool) {
	labels := labelsFor(e, g.policy)
	out := Series{Labels: labels, Watts: e.Watts, Joules: e.Joules, At: e.At}

	key := labels.Key()
	if _, ok := g.admitted[key]; ok {
		return out, true
	}

	if g.policy.MaxSeries == 0 || len(g.admitted) < g.policy.MaxSeries {
		g.admitted[key] = struct{}{}
		return out, true
	}

	g.overflow++
	if g.policy.Collision != StrategyAggregateByName {
		logger.DebugWithCode(errors.New().WithData(ErrSeriesOverflow, key)).
			Uint64("overflow", g.overflow).
			Msg("Series ceiling reached, dropping sample")
		return Series{}, false
	}

	// Aggregate buckets live outside the ceiling: they are bounded by the
	// number of distinct process names, not by process churn.
	out.Labels = Labels{Name: labels.Name}
	return out, true
}

// ProjectAll projects a whole tick's estimates and merges series that landed
// on the same label combination, such as aggregate buckets.
func (g *Governor) ProjectAll(estimates []power.Estimate) []Series {
	merged := make(map[string]int, len(estimates))
	out := make([]Series, 0, len(estimates))

	for _, e := range estimates {
		s, ok := g.Project(e)
		if !ok {
			continue
		}

		key := s.Labels.Key()
		if i, ok := merged[key]; ok {
			out[i].Watts += s.Watts
			out[i].Joules += s.Joules
			if s.At.After(out[i].At) {
				out[i].At = s.At
			}
			continue
		}
		merged[key] = len(out)
		out = append(out, s)
	}

	return out
}

// Admitted returns the number of distinct label combinations emitted so far.
func (g *Governor) Admitted() int {
	return len(g.admitted)
}

// Overflow returns how many estimates hit the series ceiling.
func (g *Governor) Overflow() uint64 {
	return g.overflow
}
