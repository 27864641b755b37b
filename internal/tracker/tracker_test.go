package tracker_test

import (
	"testing"
	"time"

	"github.com/procwatt/procwatt/internal/proc"
	"github.com/procwatt/procwatt/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func tick(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Second)
}

func sample(pid int32, start uint64, name string, cpu float64) proc.Sample {
	return proc.Sample{
		ID:      proc.ID{PID: pid, StartTime: start},
		Name:    name,
		CPUTime: cpu,
	}
}

func TestColdStartEmitsNoDelta(t *testing.T) {
	trk := tracker.New(1)

	deltas := trk.Update([]proc.Sample{sample(100, 7, "nginx", 4.2)}, tick(0))
	assert.Empty(t, deltas, "first sighting must not produce a delta")
	assert.Equal(t, 1, trk.Tracked())

	deltas = trk.Update([]proc.Sample{sample(100, 7, "nginx", 5.2)}, tick(1))
	require.Len(t, deltas, 1, "second sighting must produce exactly one delta")
	assert.Equal(t, "nginx", deltas[0].Name)
	assert.InDelta(t, 1.0, deltas[0].CPUTime, 1e-9)
	assert.Equal(t, time.Second, deltas[0].Elapsed)
}

func TestDeltasNeverNegative(t *testing.T) {
	trk := tracker.New(1)

	cpu := []float64{1.0, 3.5, 3.5, 0.2, 0.9}
	for i, c := range cpu {
		deltas := trk.Update([]proc.Sample{sample(42, 1, "worker", c)}, tick(i))
		for _, d := range deltas {
			assert.GreaterOrEqual(t, d.CPUTime, 0.0, "tick %d", i)
		}
	}
}

func TestCounterDiscontinuityResetsBaseline(t *testing.T) {
	trk := tracker.New(1)

	trk.Update([]proc.Sample{sample(42, 1, "worker", 10.0)}, tick(0))

	// Counter moved backwards: no delta, baseline resets silently.
	deltas := trk.Update([]proc.Sample{sample(42, 1, "worker", 2.0)}, tick(1))
	assert.Empty(t, deltas)
	assert.Equal(t, uint64(1), trk.Discontinuities())

	// Next tick measures from the reset baseline.
	deltas = trk.Update([]proc.Sample{sample(42, 1, "worker", 3.0)}, tick(2))
	require.Len(t, deltas, 1)
	assert.InDelta(t, 1.0, deltas[0].CPUTime, 1e-9)
}

func TestEvictionAfterGracePeriod(t *testing.T) {
	trk := tracker.New(1)

	trk.Update([]proc.Sample{sample(42, 1, "worker", 1.0)}, tick(0))
	require.Equal(t, 1, trk.Tracked())

	// One missed tick is inside the grace period.
	trk.Update(nil, tick(1))
	assert.Equal(t, 1, trk.Tracked())

	// Second consecutive absence evicts.
	trk.Update(nil, tick(2))
	assert.Equal(t, 0, trk.Tracked())
	assert.Equal(t, uint64(1), trk.Evictions())
}

func TestReappearanceWithinGraceContinues(t *testing.T) {
	trk := tracker.New(1)

	trk.Update([]proc.Sample{sample(42, 1, "worker", 1.0)}, tick(0))
	trk.Update(nil, tick(1))

	// Back before eviction: delta spans both intervals.
	deltas := trk.Update([]proc.Sample{sample(42, 1, "worker", 2.0)}, tick(2))
	require.Len(t, deltas, 1)
	assert.InDelta(t, 1.0, deltas[0].CPUTime, 1e-9)
	assert.Equal(t, 2*time.Second, deltas[0].Elapsed)
	assert.Equal(t, uint64(0), trk.Evictions())
}

func TestPIDReuseIsANewIdentity(t *testing.T) {
	trk := tracker.New(0)

	trk.Update([]proc.Sample{sample(42, 1, "worker", 50.0)}, tick(0))

	// Same PID, different start time: a different process. It gets a cold
	// start instead of a delta against the dead process's counter.
	deltas := trk.Update([]proc.Sample{sample(42, 9, "worker", 0.1)}, tick(1))
	assert.Empty(t, deltas)

	deltas = trk.Update([]proc.Sample{sample(42, 9, "worker", 0.6)}, tick(2))
	require.Len(t, deltas, 1)
	assert.InDelta(t, 0.5, deltas[0].CPUTime, 1e-9)
}

func TestMultipleProcessesTrackIndependently(t *testing.T) {
	trk := tracker.New(1)

	first := []proc.Sample{
		sample(1, 1, "init", 100.0),
		sample(200, 3, "db", 40.0),
	}
	trk.Update(first, tick(0))

	second := []proc.Sample{
		sample(1, 1, "init", 100.5),
		sample(200, 3, "db", 42.0),
		sample(300, 5, "cache", 1.0),
	}
	deltas := trk.Update(second, tick(1))
	require.Len(t, deltas, 2, "new process is cold, known ones emit")

	byPID := map[int32]float64{}
	for _, d := range deltas {
		byPID[d.ID.PID] = d.CPUTime
	}
	assert.InDelta(t, 0.5, byPID[1], 1e-9)
	assert.InDelta(t, 2.0, byPID[200], 1e-9)
}
