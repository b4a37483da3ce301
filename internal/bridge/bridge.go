// internal/bridge/bridge.go

// Package bridge translates request/response commands addressed by Modbus
// function code, slave and register into characteristic reads and writes.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-bridge/internal/metrics"
	"github.com/tamzrod/modbus-bridge/internal/poller"
	"github.com/tamzrod/modbus-bridge/internal/registry"
	"github.com/tamzrod/modbus-bridge/internal/transport"
)

// ErrInvalidArgument is returned for unsupported function codes and values
// that do not fit the addressed characteristic.
var ErrInvalidArgument = errors.New("bridge: invalid argument")

// ErrUnrepresentable is returned when a device value has no JSON form
// (NaN or infinite floats).
var ErrUnrepresentable = errors.New("bridge: value not representable")

// Command is one bridge request; the reply echoes it with Value filled.
// FuncID is kept wide so out-of-range codes reach the function-code check.
type Command struct {
	SlaveID    uint8  `json:"slaveId"`
	RegisterID uint16 `json:"registerId"`
	FuncID     int    `json:"funcId"`
	Value      any    `json:"value,omitempty"`
}

// Characteristics is the engine surface the bridge needs.
type Characteristics interface {
	ReadCharacteristic(ctx context.Context, cid registry.CID) (registry.Value, registry.Field, error)
	WriteCharacteristic(ctx context.Context, cid registry.CID, v registry.Value) error
}

// Function codes accepted by Get and Set.
var (
	readKinds = map[int]registry.RegisterKind{
		1: registry.KindCoil,
		3: registry.KindHolding,
		4: registry.KindInput,
	}
	writeKinds = map[int]registry.RegisterKind{
		5:  registry.KindCoil,
		15: registry.KindCoil,
		10: registry.KindHolding,
		16: registry.KindHolding,
	}
)

type Bridge struct {
	reg     *registry.Registry
	ch      Characteristics
	logger  zerolog.Logger
	metrics *metrics.Registry
}

func New(reg *registry.Registry, ch Characteristics, logger zerolog.Logger, m *metrics.Registry) *Bridge {
	return &Bridge{
		reg:     reg,
		ch:      ch,
		logger:  logger.With().Str("component", "bridge").Logger(),
		metrics: m,
	}
}

// Get reads the characteristic addressed by cmd and returns cmd with its
// value. Unknown function codes fail without touching the bus.
func (b *Bridge) Get(ctx context.Context, cmd Command) (Command, error) {
	reply, err := b.get(ctx, cmd)
	b.metrics.RecordBridgeRequest("get", strconv.Itoa(cmd.FuncID), Classify(err))
	return reply, err
}

func (b *Bridge) get(ctx context.Context, cmd Command) (Command, error) {
	kind, ok := readKinds[cmd.FuncID]
	if !ok {
		return cmd, fmt.Errorf("%w: function code %d cannot read", ErrInvalidArgument, cmd.FuncID)
	}

	d, err := b.reg.LookupByAddress(kind, cmd.SlaveID, cmd.RegisterID)
	if err != nil {
		return cmd, err
	}

	v, _, err := b.ch.ReadCharacteristic(ctx, d.CID)
	if err != nil {
		return cmd, err
	}

	if n, ok := v.Number(); ok && (math.IsNaN(n) || math.IsInf(n, 0)) {
		return cmd, fmt.Errorf("%w: cid %d reads %v", ErrUnrepresentable, d.CID, n)
	}

	cmd.Value = v.JSON()
	b.logger.Info().
		Uint8("slave_id", cmd.SlaveID).
		Uint16("register_id", cmd.RegisterID).
		Int("func_id", cmd.FuncID).
		Uint16("cid", uint16(d.CID)).
		Interface("value", cmd.Value).
		Msg("get")
	return cmd, nil
}

// Set writes cmd.Value to the characteristic addressed by cmd and echoes
// cmd. Unknown function codes fail without touching the bus.
func (b *Bridge) Set(ctx context.Context, cmd Command) (Command, error) {
	reply, err := b.set(ctx, cmd)
	b.metrics.RecordBridgeRequest("set", strconv.Itoa(cmd.FuncID), Classify(err))
	return reply, err
}

func (b *Bridge) set(ctx context.Context, cmd Command) (Command, error) {
	kind, ok := writeKinds[cmd.FuncID]
	if !ok {
		return cmd, fmt.Errorf("%w: function code %d cannot write", ErrInvalidArgument, cmd.FuncID)
	}

	d, err := b.reg.LookupByAddress(kind, cmd.SlaveID, cmd.RegisterID)
	if err != nil {
		return cmd, err
	}

	v, err := convert(d, cmd.Value)
	if err != nil {
		return cmd, err
	}

	if err := b.ch.WriteCharacteristic(ctx, d.CID, v); err != nil {
		return cmd, err
	}

	b.logger.Info().
		Uint8("slave_id", cmd.SlaveID).
		Uint16("register_id", cmd.RegisterID).
		Int("func_id", cmd.FuncID).
		Uint16("cid", uint16(d.CID)).
		Interface("value", cmd.Value).
		Msg("set")
	return cmd, nil
}

// convert encodes a decoded JSON value as a value of d's type.
func convert(d registry.Descriptor, raw any) (registry.Value, error) {
	var (
		v   registry.Value
		err error
	)

	switch x := raw.(type) {
	case nil:
		return registry.Value{}, fmt.Errorf("%w: value required", ErrInvalidArgument)
	case string:
		if d.Type == registry.TypeASCII {
			v, err = d.TextValue(x)
			break
		}
		n, perr := strconv.ParseFloat(x, 64)
		if perr != nil {
			return registry.Value{}, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, x)
		}
		v, err = d.NumberValue(n)
	case json.Number:
		n, perr := x.Float64()
		if perr != nil {
			return registry.Value{}, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, x)
		}
		v, err = d.NumberValue(n)
	case float64:
		v, err = d.NumberValue(x)
	case int:
		v, err = d.NumberValue(float64(x))
	case bool:
		n := 0.0
		if x {
			n = 1
		}
		v, err = d.NumberValue(n)
	default:
		return registry.Value{}, fmt.Errorf("%w: unsupported value %T", ErrInvalidArgument, raw)
	}

	if err != nil {
		return registry.Value{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return v, nil
}

// Result classes, used as metric labels and API error codes.
const (
	ResultOK              = "ok"
	ResultInvalidArgument = "invalid_argument"
	ResultNotFound        = "not_found"
	ResultAccessDenied    = "access_denied"
	ResultTransport       = "transport_error"
	ResultConfiguration   = "configuration_error"
	ResultCanceled        = "canceled"
	ResultInternal        = "internal"
)

// Classify maps an error from Get or Set onto its result class.
func Classify(err error) string {
	var te *transport.Error

	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, registry.ErrValueRange):
		return ResultInvalidArgument
	case errors.Is(err, registry.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, poller.ErrAccessDenied):
		return ResultAccessDenied
	case errors.Is(err, registry.ErrConfiguration):
		return ResultConfiguration
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	case errors.As(err, &te):
		return ResultTransport
	default:
		return ResultInternal
	}
}
