package proc

import (
	"context"
	"strconv"
)

// ID identifies one logical process instance. PIDs are recycled by the
// kernel, so the start time (in jiffies since boot, from the stat file) is
// part of the identity: a reused PID carries a different start time and is a
// different process.
type ID struct {
	PID       int32
	StartTime uint64
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id.PID), 10) + "/" + strconv.FormatUint(id.StartTime, 10)
}

// Sample is one process as observed at a single snapshot: its identity, its
// short name and the total CPU time it has consumed since it started.
// CPUTime is monotonically non-decreasing for a live process.
type Sample struct {
	ID      ID
	Name    string
	CPUTime float64 // seconds, user + system
}

// Source lists the currently running processes. Implementations must treat
// every call as independent; callers take deltas between snapshots
// themselves.
type Source interface {
	Snapshot(ctx context.Context) ([]Sample, error)
}
