package sink

import (
	"context"
	"sync"

	"github.com/procwatt/procwatt/internal/series"
)

// Memory holds the most recent tick's series for pull-based exposition,
// plus lifetime energy totals per label combination. Publish replaces the
// current batch wholesale (snapshot-then-swap), so readers never observe a
// half-written tick and the write path never holds the lock across I/O.
type Memory struct {
	mu         sync.RWMutex
	hostLabels map[string]string
	current    []series.Series
	energy     map[string]float64 // lifetime joules per label key
}

func NewMemory(hostLabels map[string]string) *Memory {
	return &Memory{
		hostLabels: hostLabels,
		energy:     make(map[string]float64),
	}
}

func (m *Memory) Publish(_ context.Context, batch []series.Series) error {
	next := make([]series.Series, len(batch))
	copy(next, batch)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = next
	for _, s := range batch {
		m.energy[s.Labels.Key()] += s.Joules
	}
	return nil
}

// Current returns a copy of the last published batch.
func (m *Memory) Current() []series.Series {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]series.Series, len(m.current))
	copy(out, m.current)
	return out
}

// Energy returns lifetime joules accumulated per label combination.
func (m *Memory) Energy() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]float64, len(m.energy))
	for k, v := range m.energy {
		out[k] = v
	}
	return out
}

// HostLabels returns the static host labels attached at startup.
func (m *Memory) HostLabels() map[string]string {
	return m.hostLabels
}
