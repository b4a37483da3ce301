// internal/poller/builder.go
package poller

import (
	"fmt"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/modbus-bridge/internal/config"
	"github.com/tamzrod/modbus-bridge/internal/metrics"
	"github.com/tamzrod/modbus-bridge/internal/registry"
	"github.com/tamzrod/modbus-bridge/internal/transport"
)

// ConfigFrom maps the polling settings onto the engine config.
func ConfigFrom(p cfg.PollingConfig) Config {
	c := Config{
		Retries:     p.Retries,
		ReadDelay:   p.ReadDelay,
		SweepDelay:  p.SweepDelay,
		Interval:    p.Interval,
		EchoPattern: p.EchoPattern,
	}
	if p.EchoCID >= 0 {
		c.EchoEnabled = true
		c.EchoCID = registry.CID(p.EchoCID)
	}
	return c
}

// Build acquires one lease on shared and binds an engine to it.
// Closing the engine (or finishing a polling cycle) releases the lease.
func Build(c Config, reg *registry.Registry, shared *transport.Shared, logger zerolog.Logger, m *metrics.Registry) (*Engine, error) {
	sess, err := shared.Acquire()
	if err != nil {
		return nil, fmt.Errorf("poller: acquire session: %w", err)
	}

	e, err := New(c, reg, sess, logger, m)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}
	return e, nil
}
