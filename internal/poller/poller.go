// internal/poller/poller.go

// Package poller reads and writes characteristics over the field bus and
// runs the alarm polling cycle.
package poller

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-bridge/internal/metrics"
	"github.com/tamzrod/modbus-bridge/internal/registry"
	"github.com/tamzrod/modbus-bridge/internal/transport"
)

// Engine moves characteristic values between storage and the bus.
// It owns one session lease; Close releases it.
type Engine struct {
	cfg     Config
	reg     *registry.Registry
	sess    transport.Session
	logger  zerolog.Logger
	metrics *metrics.Registry
}

// New creates an engine bound to sess.
func New(cfg Config, reg *registry.Registry, sess transport.Session, logger zerolog.Logger, m *metrics.Registry) (*Engine, error) {
	if reg == nil {
		return nil, errors.New("poller: registry required")
	}
	if sess == nil {
		return nil, errors.New("poller: session required")
	}
	if cfg.Retries < 0 {
		return nil, errors.New("poller: retries must be >= 0")
	}
	return &Engine{
		cfg:     cfg,
		reg:     reg,
		sess:    sess,
		logger:  logger.With().Str("component", "poller").Logger(),
		metrics: m,
	}, nil
}

// Close releases the engine's session lease.
func (e *Engine) Close() error {
	return e.sess.Close()
}

// Registry exposes the table the engine serves.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// ReadCharacteristic reads cid from its device, stores the result in the
// characteristic's field and returns the value.
func (e *Engine) ReadCharacteristic(ctx context.Context, cid registry.CID) (registry.Value, registry.Field, error) {
	d, err := e.reg.LookupByID(cid)
	if err != nil {
		return registry.Value{}, registry.Field{}, err
	}
	field, err := e.reg.Resolve(d)
	if err != nil {
		return registry.Value{}, registry.Field{}, err
	}
	if !d.Access.Has(registry.AccessRead) {
		return registry.Value{}, field, fmt.Errorf("%w: cid %d is not readable", ErrAccessDenied, cid)
	}

	v, err := e.read(ctx, d, field)
	return v, field, err
}

func (e *Engine) read(ctx context.Context, d registry.Descriptor, field registry.Field) (registry.Value, error) {
	wire, err := e.sess.Read(ctx, d.DeviceAddress, d.Kind, d.RegisterStart, d.RegisterCount)
	if err != nil {
		return registry.Value{}, fmt.Errorf("poller: read cid %d: %w", d.CID, err)
	}

	raw, err := d.FromWire(wire)
	if err != nil {
		return registry.Value{}, fmt.Errorf("poller: decode cid %d: %w", d.CID, err)
	}

	field.Store(raw)
	return registry.RawValue(d.Type, raw), nil
}

// WriteCharacteristic writes v to cid's device and, on success, to its
// field. Characteristics with the trigger flag are read back afterwards.
func (e *Engine) WriteCharacteristic(ctx context.Context, cid registry.CID, v registry.Value) error {
	d, err := e.reg.LookupByID(cid)
	if err != nil {
		return err
	}
	field, err := e.reg.Resolve(d)
	if err != nil {
		return err
	}
	if !d.Access.Has(registry.AccessWrite) {
		return fmt.Errorf("%w: cid %d is not writable", ErrAccessDenied, cid)
	}
	if v.Type != d.Type {
		return fmt.Errorf("%w: cid %d is %s, got %s", registry.ErrValueRange, cid, d.Type, v.Type)
	}

	if err := e.write(ctx, d, field, v.Raw()); err != nil {
		return err
	}

	if d.Access.Has(registry.AccessTrigger) && d.Access.Has(registry.AccessRead) {
		if _, err := e.read(ctx, d, field); err != nil {
			// The device accepted the write; storage keeps the written value.
			e.logger.Warn().Err(err).Uint16("cid", uint16(cid)).Msg("read-back after write failed")
		}
	}
	return nil
}

func (e *Engine) write(ctx context.Context, d registry.Descriptor, field registry.Field, raw []byte) error {
	wire := d.ToWire(raw)
	if err := e.sess.Write(ctx, d.DeviceAddress, d.Kind, d.RegisterStart, d.RegisterCount, wire); err != nil {
		return fmt.Errorf("poller: write cid %d: %w", d.CID, err)
	}
	field.Store(raw)
	return nil
}
