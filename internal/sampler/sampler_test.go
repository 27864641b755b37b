package sampler

import (
	"context"
	"testing"
	"time"

	"github.com/procwatt/procwatt/internal/errors"
	"github.com/procwatt/procwatt/internal/power"
	"github.com/procwatt/procwatt/internal/proc"
	"github.com/procwatt/procwatt/internal/series"
	"github.com/procwatt/procwatt/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays one prepared snapshot per call.
type scriptedSource struct {
	snapshots [][]proc.Sample
	errs      []error
	calls     int
}

func (s *scriptedSource) Snapshot(_ context.Context) ([]proc.Sample, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.snapshots) {
		return s.snapshots[i], nil
	}
	return nil, nil
}

type captureSink struct {
	batches [][]series.Series
	fail    int // publish failures to inject before succeeding
}

func (c *captureSink) Publish(_ context.Context, batch []series.Series) error {
	if c.fail > 0 {
		c.fail--
		return errors.New().New(errors.ErrSinkUnavailable)
	}
	c.batches = append(c.batches, batch)
	return nil
}

func newSampler(t *testing.T, src proc.Source, snk Sink, modelCfg power.Config) *Sampler {
	t.Helper()

	model, err := power.NewModel(modelCfg)
	require.NoError(t, err)

	gov, err := series.NewGovernor(series.DefaultPolicy())
	require.NoError(t, err)

	s, err := New(DefaultConfig(), src, tracker.New(1), model, gov, snk)
	require.NoError(t, err)
	return s
}

func steadySnapshots(ticks int) [][]proc.Sample {
	// One process consuming exactly 1s of CPU per 1s tick.
	out := make([][]proc.Sample, ticks)
	for i := range out {
		out[i] = []proc.Sample{{
			ID:      proc.ID{PID: 42, StartTime: 7},
			Name:    "burner",
			CPUTime: float64(i + 1),
		}}
	}
	return out
}

func TestSteadyLoadEstimatesFullDraw(t *testing.T) {
	src := &scriptedSource{snapshots: steadySnapshots(5)}
	snk := &captureSink{}
	s := newSampler(t, src, snk, power.Config{
		TotalDrawWatts: 100,
		CoreCount:      1,
		Attribution:    power.AttributionCPUTime,
	})

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.tick(now.Add(time.Duration(i) * time.Second))
	}

	// The first tick is cold and publishes nothing; every later tick sees
	// a fully busy single core and reports the full configured draw.
	require.Len(t, snk.batches, 4)
	for _, batch := range snk.batches {
		require.Len(t, batch, 1)
		assert.InDelta(t, 100.0, batch[0].Watts, 1e-9)
		assert.InDelta(t, 100.0, batch[0].Joules, 1e-9)
		assert.Equal(t, "42", batch[0].Labels.PID)
		assert.Equal(t, "burner", batch[0].Labels.Name)
	}

	stats := s.Stats()
	assert.Equal(t, uint64(5), stats.Ticks)
	assert.Equal(t, uint64(4), stats.Published)
	assert.Zero(t, stats.SkippedTicks)
}

func TestSnapshotFailureSkipsTickOnly(t *testing.T) {
	errFactory := errors.New()
	src := &scriptedSource{
		snapshots: steadySnapshots(3),
		errs:      []error{nil, errFactory.New(errors.ErrSourceUnavailable), nil},
	}
	snk := &captureSink{}
	s := newSampler(t, src, snk, power.Config{
		TotalDrawWatts: 100,
		CoreCount:      1,
		Attribution:    power.AttributionCPUTime,
	})

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.tick(now.Add(time.Duration(i) * time.Second))
	}

	// Tick 0 is cold, tick 1 fails, tick 2 emits a delta spanning the
	// 2s gap at the same rate.
	require.Len(t, snk.batches, 1)
	assert.InDelta(t, 100.0, snk.batches[0][0].Watts, 1e-9)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.SkippedTicks)
}

func TestPublishFailureDropsBatchOnly(t *testing.T) {
	src := &scriptedSource{snapshots: steadySnapshots(4)}
	snk := &captureSink{fail: 1}
	s := newSampler(t, src, snk, power.Config{
		TotalDrawWatts: 100,
		CoreCount:      1,
		Attribution:    power.AttributionCPUTime,
	})

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		s.tick(now.Add(time.Duration(i) * time.Second))
	}

	// Tick 0 is cold. Tick 1's publish fails and its batch is dropped,
	// never queued. Ticks 2 and 3 publish normally.
	require.Len(t, snk.batches, 2)
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.PublishErrors)
	assert.Equal(t, uint64(2), stats.Published)
}

func TestRunStopsOnCancellation(t *testing.T) {
	src := &scriptedSource{}
	snk := &captureSink{}
	s := newSampler(t, src, snk, power.DefaultConfig())
	s.cfg.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop after cancellation")
	}
	assert.Equal(t, StateStopped, s.State())
}

func TestInvalidConfigRejected(t *testing.T) {
	model, err := power.NewModel(power.DefaultConfig())
	require.NoError(t, err)
	gov, err := series.NewGovernor(series.DefaultPolicy())
	require.NoError(t, err)

	_, err = New(Config{Interval: 0, TickTimeout: time.Second},
		&scriptedSource{}, tracker.New(1), model, gov, &captureSink{})
	assert.Error(t, err)

	_, err = New(Config{Interval: time.Second, TickTimeout: 0},
		&scriptedSource{}, tracker.New(1), model, gov, &captureSink{})
	assert.Error(t, err)
}
