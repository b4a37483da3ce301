// internal/poller/cycle.go
package poller

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/tamzrod/modbus-bridge/internal/registry"
	"github.com/tamzrod/modbus-bridge/internal/status"
)

// RunPollingCycle sweeps the table in CID order up to Retries times and
// stops at the first characteristic outside its limits. The engine's
// session lease is released when the cycle ends.
//
// Transport failures skip the characteristic. Configuration errors end the
// cycle with StateFailed. Cancellation ends it with StateAborted and
// ctx.Err().
func (e *Engine) RunPollingCycle(ctx context.Context) (status.Outcome, error) {
	defer func() {
		if err := e.sess.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("session release failed")
		}
	}()

	out := status.Outcome{State: status.StateRunning, StartedAt: time.Now()}
	finish := func(s status.State, err error) (status.Outcome, error) {
		out.State = s
		out.FinishedAt = time.Now()
		e.metrics.RecordCycle(s.String())
		return out, err
	}

	n := e.reg.Len()

retrying:
	for retry := 0; retry < e.cfg.Retries; retry++ {
		if retry > 0 {
			if err := sleep(ctx, e.cfg.SweepDelay); err != nil {
				return finish(status.StateAborted, err)
			}
		}
		out.Sweeps++
		e.metrics.RecordSweep()

		// The table is dense from 0; the first missing CID ends the sweep.
		for i := 0; i < n; i++ {
			if i > 0 {
				if err := sleep(ctx, e.cfg.ReadDelay); err != nil {
					return finish(status.StateAborted, err)
				}
			}

			st, err := e.scan(ctx, registry.CID(i), &out)
			if err != nil {
				if ctx.Err() != nil {
					return finish(status.StateAborted, ctx.Err())
				}
				e.logger.Error().Err(err).Int("cid", i).Msg("polling aborted")
				return finish(status.StateFailed, err)
			}

			switch st {
			case stepAlarm:
				break retrying
			case stepExhausted:
				continue retrying
			}
		}
	}

	if out.State == status.StateAlarm {
		e.logger.Info().
			Uint16("cid", uint16(out.AlarmCID)).
			Str("characteristic", out.AlarmName).
			Int("sweeps", out.Sweeps).
			Msgf("alarm triggered by characteristic %s", out.AlarmName)
		return finish(status.StateAlarm, nil)
	}

	e.logger.Info().Int("sweeps", out.Sweeps).Int("reads", out.Reads).
		Msgf("no alarm after %d retries", e.cfg.Retries)
	return finish(status.StateClear, nil)
}

// scan reads one characteristic and checks it. A non-nil error aborts the
// cycle.
func (e *Engine) scan(ctx context.Context, cid registry.CID, out *status.Outcome) (step, error) {
	d, err := e.reg.LookupByID(cid)
	if errors.Is(err, registry.ErrNotFound) {
		return stepExhausted, nil
	}
	if err != nil {
		return stepContinue, err
	}

	out.Reads++
	v, field, err := e.ReadCharacteristic(ctx, cid)
	switch {
	case err == nil:
		e.metrics.RecordPollRead(true)
	case ctx.Err() != nil:
		return stepContinue, ctx.Err()
	case errors.Is(err, registry.ErrConfiguration):
		return stepContinue, err
	case errors.Is(err, ErrAccessDenied):
		out.Reads--
		e.logger.Debug().Uint16("cid", uint16(cid)).Msg("characteristic not readable, skipped")
		return stepContinue, nil
	default:
		out.ReadErrors++
		e.metrics.RecordPollRead(false)
		e.logger.Warn().Err(err).
			Uint16("cid", uint16(cid)).
			Str("characteristic", d.Name).
			Msg("characteristic read failed")
		return stepContinue, nil
	}

	e.logger.Debug().
		Uint16("cid", uint16(cid)).
		Str("characteristic", d.Name).
		Str("units", d.Units).
		Interface("value", v.JSON()).
		Msg("characteristic read")

	if e.cfg.EchoEnabled && cid == e.cfg.EchoCID && d.Type == registry.TypeASCII {
		e.echo(ctx, d, field)
		return stepContinue, nil
	}

	if !tripped(d, v) {
		return stepContinue, nil
	}

	out.State = status.StateAlarm
	out.AlarmCID = cid
	out.AlarmName = d.Name
	e.metrics.RecordAlarm(d.Name)
	return stepAlarm, nil
}

// echo refreshes the test characteristic with the fill pattern whenever the
// device reports something else.
func (e *Engine) echo(ctx context.Context, d registry.Descriptor, field registry.Field) {
	want := bytes.Repeat([]byte{e.cfg.EchoPattern}, field.Size())
	if bytes.Equal(field.Load(), want) {
		return
	}

	field.Fill(e.cfg.EchoPattern)
	if !d.Access.Has(registry.AccessWrite) {
		e.logger.Debug().Uint16("cid", uint16(d.CID)).Msg("echo characteristic not writable")
		return
	}

	if err := e.write(ctx, d, field, want); err != nil {
		e.logger.Warn().Err(err).Uint16("cid", uint16(d.CID)).Msg("echo write failed")
		return
	}
	e.metrics.RecordEchoWrite()
}

// tripped applies the alarm rule of the characteristic's kind: analog values
// outside [min, max], digital values with any masked bit set.
func tripped(d registry.Descriptor, v registry.Value) bool {
	if d.Kind.Digital() {
		return v.Bits()&d.Limits.Bitmask() != 0
	}
	n, ok := v.Number()
	if !ok {
		return false
	}
	return n > d.Limits.Max() || n < d.Limits.Min()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
