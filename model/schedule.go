package model

import "time"

// ScheduleKind distinguishes fixed-interval from CRON-driven schedules.
type ScheduleKind int

const (
	ScheduleInterval ScheduleKind = iota
	ScheduleCron
)

// ScheduleState is the lifecycle state of an active ScheduleHandle.
type ScheduleState int

const (
	ScheduleStopped ScheduleState = iota
	ScheduleScheduled
	ScheduleRunning
	ScheduleError
)

func (s ScheduleState) String() string {
	switch s {
	case ScheduleScheduled:
		return "scheduled"
	case ScheduleRunning:
		return "running"
	case ScheduleError:
		return "error"
	default:
		return "stopped"
	}
}

// MinIntervalSeconds and MaxIntervalSeconds bound ScheduleInterval durations
// per spec: 10s to the largest safe millisecond value for the timer primitive.
const (
	MinIntervalSeconds = 10
	MaxIntervalSeconds = 2_147_483
)

// ScheduleHandle is the published, runtime-owned record of one active
// schedule (spec.md §3). The cron iterator itself is kept out of this
// struct (it lives in the schedule package's internal handle) since it is
// not meaningfully copyable state for a published snapshot.
type ScheduleHandle struct {
	ScriptName      string
	ScriptPath      string
	ScheduleType    ScheduleKind
	IntervalSeconds int
	CronExpression  string
	LastRun         *time.Time
	NextRun         *time.Time
	IsExecuting     bool
	IsStopping      bool
	State           ScheduleState
}
