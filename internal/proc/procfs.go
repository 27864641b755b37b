//go:build linux

package proc

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/procwatt/procwatt/internal/errors"
	"github.com/procwatt/procwatt/internal/logger"
)

// procfsSource reads the process table from /proc. Only the stat file is
// touched per process; everything else the daemon needs is derived from
// deltas between snapshots.
type procfsSource struct {
	root         string
	jiffySeconds float64
}

// NewSource returns a Source backed by the mounted procfs.
func NewSource() Source {
	return &procfsSource{
		root:         "/proc",
		jiffySeconds: 1.0 / float64(ClockTicks()),
	}
}

func (s *procfsSource) Snapshot(ctx context.Context) ([]Sample, error) {
	errFactory := errors.New()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errFactory.Wrap(ErrSourceUnavailable, err)
	}

	samples := make([]Sample, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, errFactory.Wrap(ErrSourceUnavailable, err)
		}

		pid, err := strconv.ParseInt(entry.Name(), 10, 32)
		if err != nil || !entry.IsDir() {
			continue
		}

		sample, err := s.readProcess(int32(pid))
		if err != nil {
			// The process likely exited between the directory listing and
			// the stat read. Not a snapshot failure.
			logger.Debug().Int32("pid", int32(pid)).Err(err).Msg("Skipping unreadable process")
			continue
		}
		samples = append(samples, sample)
	}

	return samples, nil
}

func (s *procfsSource) readProcess(pid int32) (Sample, error) {
	raw, err := os.ReadFile(filepath.Join(s.root, strconv.FormatInt(int64(pid), 10), "stat"))
	if err != nil {
		return Sample{}, err
	}

	st, err := parseStat(string(raw))
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		ID:      ID{PID: pid, StartTime: st.starttime},
		Name:    st.name,
		CPUTime: float64(st.utime+st.stime) * s.jiffySeconds,
	}, nil
}
