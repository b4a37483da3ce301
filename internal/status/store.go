// internal/status/store.go
package status

import (
	"sync"
	"time"
)

// Store is the shared polling health, written by the polling worker and
// read by the HTTP surface.
type Store struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewStore() *Store {
	return &Store{snap: Snapshot{Health: HealthUnknown}}
}

// Disable marks polling as turned off.
func (s *Store) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Health = HealthDisabled
}

// Begin records the start of a cycle.
func (s *Store) Begin(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Last = Outcome{State: StateRunning, StartedAt: at}
}

// Finish records a completed cycle. A nil err resets the error state.
func (s *Store) Finish(o Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Cycles++
	s.snap.Last = o

	switch {
	case err != nil:
		s.snap.Health = HealthError
		s.snap.LastErrorCode = ErrorCode(err)
		return
	case o.State == StateAlarm:
		s.snap.Health = HealthAlarm
	default:
		s.snap.Health = HealthOK
	}

	// Recovery
	s.snap.LastErrorCode = 0
	s.snap.SecondsInError = 0
}

// Tick advances the error timer by one second while the last cycle failed.
func (s *Store) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Health == HealthError && s.snap.SecondsInError < SecondsInErrorMax {
		s.snap.SecondsInError++
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
