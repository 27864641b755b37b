package sink

import (
	"context"

	"github.com/procwatt/procwatt/internal/series"
	"golang.org/x/sync/errgroup"
)

// Publisher accepts one tick's governed series.
type Publisher interface {
	Publish(ctx context.Context, batch []series.Series) error
}

const maxBackoffShift = 6

type target struct {
	sink     Publisher
	backoff  int // batches left to skip
	failures int // consecutive publish failures
}

// Multi fans one batch out to several sinks concurrently. A failing sink
// backs off on its own: consecutive failures double the number of batches it
// sits out, while the healthy sinks keep receiving every batch. Batches a
// backing-off sink misses are dropped, never queued. Multi expects a single
// caller, like the rest of the pipeline.
type Multi struct {
	targets []*target
}

func NewMulti(sinks ...Publisher) *Multi {
	targets := make([]*target, 0, len(sinks))
	for _, s := range sinks {
		targets = append(targets, &target{sink: s})
	}
	return &Multi{targets: targets}
}

// Publish delivers the batch to every sink not in backoff and returns the
// first failure. All publishes run to completion; one sink's failure does not
// cancel its siblings.
func (m *Multi) Publish(ctx context.Context, batch []series.Series) error {
	var g errgroup.Group
	for _, t := range m.targets {
		if t.backoff > 0 {
			t.backoff--
			continue
		}
		t := t
		g.Go(func() error {
			if err := t.sink.Publish(ctx, batch); err != nil {
				if t.failures < maxBackoffShift {
					t.failures++
				}
				t.backoff = 1<<t.failures - 1
				return err
			}
			t.failures = 0
			return nil
		})
	}
	return g.Wait()
}
