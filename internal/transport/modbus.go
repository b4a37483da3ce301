// internal/transport/modbus.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/goburrow/serial"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/tamzrod/modbus-bridge/internal/metrics"
	"github.com/tamzrod/modbus-bridge/internal/registry"
)

// Config selects and tunes the field-bus link.
type Config struct {
	Mode        string // "rtu" or "tcp"
	Port        string // serial device, rtu only
	Address     string // host:port, tcp only
	BaudRate    int
	DataBits    int
	Parity      string
	StopBits    int
	RS485       bool
	Timeout     time.Duration
	IdleTimeout time.Duration
	Breaker     BreakerConfig
}

// BreakerConfig tunes the circuit breaker wrapped around the bus.
type BreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// Consecutive link failures that open the breaker.
	FailureThreshold uint32
}

// busClient is the subset of modbus.Client used here.
type busClient interface {
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// ModbusSession is one goburrow/modbus master channel. It serializes
// requests because it mutates the slave id per exchange.
type ModbusSession struct {
	mu       sync.Mutex
	client   busClient
	setSlave func(uint8)
	closer   func() error
	closed   bool

	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
	metrics *metrics.Registry
}

// Open connects the link described by cfg.
func Open(cfg Config, logger zerolog.Logger, m *metrics.Registry) (*ModbusSession, error) {
	switch cfg.Mode {
	case "rtu":
		if cfg.Port == "" {
			return nil, errors.New("transport: rtu port required")
		}
		h := modbus.NewRTUClientHandler(cfg.Port)
		h.BaudRate = cfg.BaudRate
		h.DataBits = cfg.DataBits
		h.Parity = cfg.Parity
		h.StopBits = cfg.StopBits
		h.Timeout = cfg.Timeout
		h.IdleTimeout = cfg.IdleTimeout
		if cfg.RS485 {
			h.RS485 = serial.RS485Config{
				Enabled:           true,
				RtsHighDuringSend: true,
			}
		}
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("transport: open %s: %w", cfg.Port, err)
		}
		s := newSession(modbus.NewClient(h), func(id uint8) { h.SlaveId = id }, h.Close, cfg.Breaker, logger, m)
		s.logger.Info().Str("port", cfg.Port).Int("baud", cfg.BaudRate).Bool("rs485", cfg.RS485).Msg("rtu link open")
		return s, nil

	case "tcp":
		if cfg.Address == "" {
			return nil, errors.New("transport: tcp address required")
		}
		h := modbus.NewTCPClientHandler(cfg.Address)
		h.Timeout = cfg.Timeout
		h.IdleTimeout = cfg.IdleTimeout
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("transport: dial %s: %w", cfg.Address, err)
		}
		s := newSession(modbus.NewClient(h), func(id uint8) { h.SlaveId = id }, h.Close, cfg.Breaker, logger, m)
		s.logger.Info().Str("address", cfg.Address).Msg("tcp link open")
		return s, nil

	default:
		return nil, fmt.Errorf("transport: unknown mode %q", cfg.Mode)
	}
}

func newSession(c busClient, setSlave func(uint8), closer func() error, bc BreakerConfig, logger zerolog.Logger, m *metrics.Registry) *ModbusSession {
	s := &ModbusSession{
		client:   c,
		setSlave: setSlave,
		closer:   closer,
		logger:   logger.With().Str("component", "transport").Logger(),
		metrics:  m,
	}

	threshold := bc.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "modbus",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state change")
			s.metrics.SetBreakerState(int(to))
		},
		// A device exception proves the link works.
		IsSuccessful: func(err error) bool {
			var me *modbus.ModbusError
			return err == nil || errors.As(err, &me)
		},
	})
	return s
}

func (s *ModbusSession) Read(ctx context.Context, device uint8, kind registry.RegisterKind, start, count uint16) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("read", device, kind, start, CodeCanceled, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, NewError("read", device, kind, start, CodeClosed, ErrClosed)
	}
	s.setSlave(device)

	begin := time.Now()
	out, err := s.breaker.Execute(func() (interface{}, error) {
		switch kind {
		case registry.KindHolding:
			return s.client.ReadHoldingRegisters(start, count)
		case registry.KindInput:
			return s.client.ReadInputRegisters(start, count)
		case registry.KindCoil:
			return s.client.ReadCoils(start, count)
		case registry.KindDiscrete:
			return s.client.ReadDiscreteInputs(start, count)
		}
		return nil, errUnsupported
	})
	s.metrics.RecordExchange(kind.String(), "read", err == nil, time.Since(begin).Seconds())
	if err != nil {
		return nil, s.translate("read", device, kind, start, err)
	}

	data, _ := out.([]byte)
	if len(data) < wantLength(kind, count) {
		return nil, NewError("read", device, kind, start, CodeMalformed,
			fmt.Errorf("short response: got %d bytes, want %d", len(data), wantLength(kind, count)))
	}
	return data[:wantLength(kind, count)], nil
}

func (s *ModbusSession) Write(ctx context.Context, device uint8, kind registry.RegisterKind, start, count uint16, data []byte) error {
	if err := ctx.Err(); err != nil {
		return NewError("write", device, kind, start, CodeCanceled, err)
	}
	if kind != registry.KindHolding && kind != registry.KindCoil {
		return NewError("write", device, kind, start, CodeUnsupported, errUnsupported)
	}
	if len(data) != wantLength(kind, count) {
		return NewError("write", device, kind, start, CodeMalformed,
			fmt.Errorf("payload %d bytes, want %d", len(data), wantLength(kind, count)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewError("write", device, kind, start, CodeClosed, ErrClosed)
	}
	s.setSlave(device)

	begin := time.Now()
	_, err := s.breaker.Execute(func() (interface{}, error) {
		if kind == registry.KindCoil {
			return s.client.WriteMultipleCoils(start, count, data)
		}
		return s.client.WriteMultipleRegisters(start, count, data)
	})
	s.metrics.RecordExchange(kind.String(), "write", err == nil, time.Since(begin).Seconds())
	if err != nil {
		return s.translate("write", device, kind, start, err)
	}
	return nil
}

// Close is idempotent.
func (s *ModbusSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info().Msg("link closed")
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

var errUnsupported = errors.New("register kind not supported for this operation")

func (s *ModbusSession) translate(op string, device uint8, kind registry.RegisterKind, start uint16, err error) error {
	var me *modbus.ModbusError
	var ne net.Error

	switch {
	case errors.As(err, &me):
		return NewError(op, device, kind, start, uint16(me.ExceptionCode), err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return NewError(op, device, kind, start, CodeBreakerOpen, err)
	case errors.Is(err, errUnsupported):
		return NewError(op, device, kind, start, CodeUnsupported, err)
	case errors.Is(err, serial.ErrTimeout), errors.As(err, &ne) && ne.Timeout():
		return NewError(op, device, kind, start, CodeTimeout, err)
	default:
		return NewError(op, device, kind, start, CodeIO, err)
	}
}

func wantLength(kind registry.RegisterKind, count uint16) int {
	if kind.Digital() {
		return (int(count) + 7) / 8
	}
	return int(count) * 2
}
