package tracker

import (
	"time"

	"github.com/procwatt/procwatt/internal/errors"
	"github.com/procwatt/procwatt/internal/logger"
	"github.com/procwatt/procwatt/internal/proc"
)

// Delta is the CPU time one process consumed between two consecutive
// observations. CPUTime is never negative and Elapsed is always positive.
type Delta struct {
	ID      proc.ID
	Name    string
	CPUTime float64 // seconds
	Elapsed time.Duration
}

type state struct {
	cpuTime float64
	seenAt  time.Time
	missed  int
}

// Tracker owns the per-process baselines that turn cumulative CPU time
// counters into per-tick deltas. It is not synchronized: the sampler loop is
// its only caller and calls Update with strictly increasing timestamps.
type Tracker struct {
	graceTicks      int
	states          map[proc.ID]*state
	discontinuities uint64
	evictions       uint64
}

// New creates a tracker. graceTicks is the number of consecutive snapshots a
// known process may be absent from before its state is evicted; one missed
// tick is tolerated by default to ride out transient read races.
func New(graceTicks int) *Tracker {
	if graceTicks < 0 {
		graceTicks = 0
	}
	return &Tracker{
		graceTicks: graceTicks,
		states:     make(map[proc.ID]*state),
	}
}

// Update ingests one snapshot taken at now and returns the CPU time deltas
// for every process with a usable baseline.
//
// A process seen for the first time establishes a baseline and emits nothing;
// there is no prior value to subtract. A cumulative counter that moved
// backwards (a reset the identity check did not catch) resets the baseline
// silently instead of producing a bogus delta. Processes absent longer than
// the grace period are forgotten; their final partial interval of CPU time is
// dropped, since it cannot be read once the process is gone.
func (t *Tracker) Update(snapshot []proc.Sample, now time.Time) []Delta {
	deltas := make([]Delta, 0, len(snapshot))
	present := make(map[proc.ID]struct{}, len(snapshot))

	for _, sample := range snapshot {
		present[sample.ID] = struct{}{}

		st, ok := t.states[sample.ID]
		if !ok {
			t.states[sample.ID] = &state{cpuTime: sample.CPUTime, seenAt: now}
			continue
		}

		d := sample.CPUTime - st.cpuTime
		elapsed := now.Sub(st.seenAt)

		if d >= 0 && elapsed > 0 {
			deltas = append(deltas, Delta{
				ID:      sample.ID,
				Name:    sample.Name,
				CPUTime: d,
				Elapsed: elapsed,
			})
		} else if d < 0 {
			t.discontinuities++
			logger.DebugWithCode(errors.New().WithData(ErrCounterDiscontinuity, sample.ID.String())).
				Uint64("discontinuities", t.discontinuities).
				Msg("Counter moved backwards, resetting baseline")
		}

		st.cpuTime = sample.CPUTime
		st.seenAt = now
		st.missed = 0
	}

	for id, st := range t.states {
		if _, ok := present[id]; ok {
			continue
		}
		st.missed++
		if st.missed > t.graceTicks {
			delete(t.states, id)
			t.evictions++
		}
	}

	return deltas
}

// Tracked returns the number of processes currently holding a baseline.
func (t *Tracker) Tracked() int {
	return len(t.states)
}

// Discontinuities returns how many backwards counter movements were absorbed.
func (t *Tracker) Discontinuities() uint64 {
	return t.discontinuities
}

// Evictions returns how many baselines were dropped after the grace period.
func (t *Tracker) Evictions() uint64 {
	return t.evictions
}
