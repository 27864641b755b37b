package sampler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/procwatt/procwatt/internal/errors"
	"github.com/procwatt/procwatt/internal/logger"
	"github.com/procwatt/procwatt/internal/power"
	"github.com/procwatt/procwatt/internal/proc"
	"github.com/procwatt/procwatt/internal/series"
	"github.com/procwatt/procwatt/internal/tracker"
)

// State is the sampler's position in its tick cycle.
type State int32

const (
	StateIdle State = iota
	StateSampling
	StateEmitting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateEmitting:
		return "emitting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Sink accepts one tick's governed series for exposition.
type Sink interface {
	Publish(ctx context.Context, batch []series.Series) error
}

type Config struct {
	Interval    time.Duration
	TickTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:    time.Second,
		TickTimeout: 5 * time.Second,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(ErrInvalidInterval, c.Interval)
	}
	if c.TickTimeout <= 0 {
		return errFactory.WithData(ErrInvalidInterval, c.TickTimeout)
	}
	return nil
}

// Stats counts what happened across the sampler's lifetime.
type Stats struct {
	Ticks          uint64
	SkippedTicks   uint64 // snapshot failures
	DroppedSamples uint64 // invalid intervals
	PublishErrors  uint64
	Published      uint64 // series handed to the sink
}

// Sampler drives the pipeline: snapshot, delta, estimate, govern, publish.
// One sampler runs one sequential tick loop; ticks never overlap, which is
// what lets the tracker and governor go unsynchronized.
type Sampler struct {
	cfg      Config
	source   proc.Source
	tracker  *tracker.Tracker
	model    power.Model
	governor *series.Governor
	sink     Sink

	state atomic.Int32
	stats Stats
}

func New(cfg Config, source proc.Source, trk *tracker.Tracker, model power.Model, gov *series.Governor, snk Sink) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{
		cfg:      cfg,
		source:   source,
		tracker:  trk,
		model:    model,
		governor: gov,
		sink:     snk,
	}, nil
}

// Run executes the tick loop until ctx is cancelled. Cancellation is only
// checked between ticks: an in-flight tick always completes, so shutdown
// latency is bounded by one interval plus the tick timeout. Run returns nil
// on cancellation; no error inside a tick is fatal.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.state.Store(int32(StateStopped))
			return nil
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// tick runs one full sampling cycle. Tick I/O runs under its own timeout,
// detached from the run context, so cancellation never truncates a tick.
func (s *Sampler) tick(now time.Time) {
	s.stats.Ticks++
	s.state.Store(int32(StateSampling))
	defer s.state.Store(int32(StateIdle))

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TickTimeout)
	defer cancel()

	snapshot, err := s.source.Snapshot(ctx)
	if err != nil {
		s.stats.SkippedTicks++
		logger.Warn().
			Err(err).
			Uint64("skipped_ticks", s.stats.SkippedTicks).
			Msg("Snapshot failed, skipping tick")
		return
	}

	deltas := s.tracker.Update(snapshot, now)

	estimates := make([]power.Estimate, 0, len(deltas))
	for _, d := range deltas {
		est, err := s.model.Estimate(d, now)
		if err != nil {
			s.stats.DroppedSamples++
			logger.Debug().
				Err(err).
				Str("process", d.ID.String()).
				Msg("Dropping sample")
			continue
		}
		estimates = append(estimates, est)
	}

	s.state.Store(int32(StateEmitting))

	batch := s.governor.ProjectAll(estimates)
	if len(batch) == 0 {
		return
	}

	// Failed batches are dropped, not queued; sink-level backoff lives in
	// the multi sink, so one failing sink cannot starve the others.
	if err := s.sink.Publish(ctx, batch); err != nil {
		s.stats.PublishErrors++
		logger.ErrorWithCode(err).
			Uint64("publish_errors", s.stats.PublishErrors).
			Msg("Publish failed, dropping batch")
		return
	}

	s.stats.Published += uint64(len(batch))
}

// State reports the current position in the tick cycle. Safe to call from
// other goroutines.
func (s *Sampler) State() State {
	return State(s.state.Load())
}

// Stats returns lifetime counters. Only meaningful once Run has returned or
// between ticks; the sampler does not synchronize them.
func (s *Sampler) Stats() Stats {
	return s.stats
}
