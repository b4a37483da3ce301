// internal/status/snapshot.go
package status

import (
	"errors"
	"time"

	"github.com/tamzrod/modbus-bridge/internal/registry"
)

// State is where a polling cycle ended.
type State uint8

const (
	StateUnknown State = iota
	StateRunning
	// StateAlarm: a characteristic tripped its limits.
	StateAlarm
	// StateClear: all retries ran without alarm.
	StateClear
	// StateAborted: the run was cancelled.
	StateAborted
	// StateFailed: a configuration error stopped the run.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateAlarm:
		return "alarm"
	case StateClear:
		return "clear"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one polling cycle.
type Outcome struct {
	State State

	// Set only when State is StateAlarm.
	AlarmCID  registry.CID
	AlarmName string

	Sweeps     int
	Reads      int
	ReadErrors int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Snapshot is the process-level polling health.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
	Cycles         uint64
	Last           Outcome
}

// ErrorCode extracts a best-effort uint16 code from an error without
// assuming concrete types. Errors exposing no code report
// ErrorCodeGeneric.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ErrorCodeGeneric
}
