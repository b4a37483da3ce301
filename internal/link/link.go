// internal/link/link.go

// Package link reports network link state changes. Events are logged only;
// they never drive the bus or the polling cycle.
package link

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
)

type Kind uint8

const (
	Up Kind = iota + 1
	Down
	Started
	Stopped
)

func (k Kind) String() string {
	switch k {
	case Up:
		return "up"
	case Down:
		return "down"
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind         Kind
	Interface    string
	HardwareAddr net.HardwareAddr
}

// Watch logs events until events is closed. The producer owns the channel,
// so the final Stopped event is logged too.
func Watch(events <-chan Event, logger zerolog.Logger) {
	log := logger.With().Str("component", "link").Logger()

	for ev := range events {
		e := log.Info().Str("interface", ev.Interface).Str("event", ev.Kind.String())
		if ev.Kind == Up && len(ev.HardwareAddr) > 0 {
			e = e.Str("hw_addr", ev.HardwareAddr.String())
		}
		e.Msgf("link %s", ev.Kind)
	}
}

// Monitor polls one interface's flags and emits an event on every change.
type Monitor struct {
	name     string
	interval time.Duration
	lookup   func(string) (*net.Interface, error)
}

func NewMonitor(name string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{name: name, interval: interval, lookup: net.InterfaceByName}
}

// Run emits Started, then Up/Down on each transition, then Stopped when ctx
// is done. It closes out before returning.
func (m *Monitor) Run(ctx context.Context, out chan<- Event) {
	defer close(out)

	emit := func(k Kind, hw net.HardwareAddr) bool {
		select {
		case out <- Event{Kind: k, Interface: m.name, HardwareAddr: hw}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Started, nil) {
		return
	}

	var (
		known bool
		up    bool
	)
	check := func() bool {
		ifi, err := m.lookup(m.name)
		now := err == nil && ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagRunning != 0
		if known && now == up {
			return true
		}
		known, up = true, now
		if now {
			return emit(Up, ifi.HardwareAddr)
		}
		return emit(Down, nil)
	}

	if !check() {
		return
	}

	t := time.NewTicker(m.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			// Bounded so a vanished consumer cannot hold Run open.
			stop := time.NewTimer(m.interval)
			defer stop.Stop()
			select {
			case out <- Event{Kind: Stopped, Interface: m.name}:
			case <-stop.C:
			}
			return
		case <-t.C:
			if !check() {
				return
			}
		}
	}
}
