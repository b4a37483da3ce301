// internal/poller/runner.go
package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-bridge/internal/metrics"
	"github.com/tamzrod/modbus-bridge/internal/registry"
	"github.com/tamzrod/modbus-bridge/internal/status"
	"github.com/tamzrod/modbus-bridge/internal/transport"
)

// Runner drives polling cycles and publishes their outcome.
type Runner struct {
	Config   Config
	Registry *registry.Registry
	Shared   *transport.Shared
	Store    *status.Store
	Logger   zerolog.Logger
	Metrics  *metrics.Registry
}

// Run executes one cycle, or one cycle per Interval until ctx is done.
// Each cycle holds its own session lease. The store's error timer ticks at
// 1 Hz while Run is active.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Store.Tick()
			}
		}
	}()

	for {
		eng, err := Build(r.Config, r.Registry, r.Shared, r.Logger, r.Metrics)
		if err != nil {
			r.Store.Finish(status.Outcome{State: status.StateFailed, FinishedAt: time.Now()}, err)
			return err
		}

		r.Store.Begin(time.Now())
		out, err := eng.RunPollingCycle(ctx)
		r.Store.Finish(out, err)

		if ctx.Err() != nil {
			return nil
		}
		if r.Config.Interval <= 0 {
			return err
		}
		if err != nil {
			r.Logger.Error().Err(err).Msg("polling cycle failed")
		}
		if err := sleep(ctx, r.Config.Interval); err != nil {
			return nil
		}
	}
}
