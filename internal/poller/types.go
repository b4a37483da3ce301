// internal/poller/types.go
package poller

import (
	"errors"
	"time"

	"github.com/tamzrod/modbus-bridge/internal/registry"
)

// ErrAccessDenied is returned when a characteristic lacks the read or write
// capability an operation needs.
var ErrAccessDenied = errors.New("poller: access denied")

// Config is the runtime config of the polling engine.
type Config struct {
	// Retries bounds the number of sweeps in one cycle.
	Retries    int
	ReadDelay  time.Duration
	SweepDelay time.Duration

	// Interval separates cycles in Run. Zero runs a single cycle.
	Interval time.Duration

	// Echo/test characteristic: its field is kept filled with EchoPattern.
	EchoEnabled bool
	EchoCID     registry.CID
	EchoPattern byte
}

// DefaultConfig matches the built-in register table.
func DefaultConfig() Config {
	return Config{
		Retries:     30,
		ReadDelay:   time.Millisecond,
		SweepDelay:  500 * time.Millisecond,
		EchoPattern: 0x55,
	}
}

// step is the result of scanning one characteristic.
type step uint8

const (
	stepContinue step = iota
	stepAlarm
	stepExhausted
)
