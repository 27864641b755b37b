package proc

import (
	"os"
	"strconv"
	"strings"

	"github.com/procwatt/procwatt/internal/errors"
)

// Field positions in /proc/<pid>/stat, counted after the "(comm) " prefix is
// stripped. Overall positions per proc(5): utime is field 14, stime 15,
// starttime 22; the first three fields (pid, comm, state) are consumed by the
// prefix handling, leaving state at index 0.
const (
	statFieldUtime     = 11
	statFieldStime     = 12
	statFieldStarttime = 19
)

type statLine struct {
	name      string
	utime     uint64 // jiffies
	stime     uint64 // jiffies
	starttime uint64 // jiffies since boot
}

// parseStat extracts the fields this daemon needs from one stat line.
// The comm field is wrapped in parentheses and may itself contain spaces or
// parentheses, so fields are split only after the last ") ".
func parseStat(line string) (statLine, error) {
	errFactory := errors.New()

	i := strings.LastIndex(line, ") ")
	if i < 0 {
		return statLine{}, errFactory.WithData(ErrMalformedStat, line)
	}

	name := line[:i]
	if j := strings.Index(name, "("); j >= 0 {
		name = name[j+1:]
	}

	fields := strings.Fields(line[i+2:])
	if len(fields) <= statFieldStarttime {
		return statLine{}, errFactory.WithData(ErrMalformedStat, line)
	}

	utime, err := strconv.ParseUint(fields[statFieldUtime], 10, 64)
	if err != nil {
		return statLine{}, errFactory.Wrap(ErrMalformedStat, err)
	}
	stime, err := strconv.ParseUint(fields[statFieldStime], 10, 64)
	if err != nil {
		return statLine{}, errFactory.Wrap(ErrMalformedStat, err)
	}
	starttime, err := strconv.ParseUint(fields[statFieldStarttime], 10, 64)
	if err != nil {
		return statLine{}, errFactory.Wrap(ErrMalformedStat, err)
	}

	return statLine{
		name:      name,
		utime:     utime,
		stime:     stime,
		starttime: starttime,
	}, nil
}

// ClockTicks returns the number of jiffies (clock ticks) per second.
// It first checks the env var CLK_TCK (useful for testing), otherwise falls
// back to 100, the common default. The authoritative value is
// sysconf(_SC_CLK_TCK), but reading it requires cgo.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}
