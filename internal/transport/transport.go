// internal/transport/transport.go

// Package transport is the field-bus collaborator: it moves register bytes
// between the controller and remote Modbus devices. The bus is half-duplex,
// so every Session serialises its exchanges.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/tamzrod/modbus-bridge/internal/registry"
)

// Session is one open field-bus channel.
type Session interface {
	// Read returns the raw payload of count registers (or bits) starting at
	// start on device. Register payloads are big-endian, bit payloads packed
	// LSB first.
	Read(ctx context.Context, device uint8, kind registry.RegisterKind, start, count uint16) ([]byte, error)

	// Write sends data (same layout as Read) to count registers or bits.
	Write(ctx context.Context, device uint8, kind registry.RegisterKind, start, count uint16, data []byte) error

	Close() error
}

// Codes above the Modbus exception range are local failures.
const (
	CodeTimeout     uint16 = 0x0100
	CodeBreakerOpen uint16 = 0x0101
	CodeClosed      uint16 = 0x0102
	CodeIO          uint16 = 0x0103
	CodeMalformed   uint16 = 0x0104
	CodeUnsupported uint16 = 0x0105
	CodeCanceled    uint16 = 0x0106
)

// ErrClosed is wrapped by operations on a closed session or released lease.
var ErrClosed = errors.New("transport: session closed")

// Error is a failed field-bus exchange. Code is the Modbus exception code
// (1..11) reported by the device, or one of the local Code* values.
type Error struct {
	Op     string
	Device uint8
	Kind   registry.RegisterKind
	Start  uint16
	code   uint16
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s %s device=%d start=%d code=0x%x: %v",
		e.Op, e.Kind, e.Device, e.Start, e.code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code exposes the error code to callers that only know the coder interface.
func (e *Error) Code() uint16 { return e.code }

// NewError builds a transport error; it is exported for fakes in other
// packages' tests.
func NewError(op string, device uint8, kind registry.RegisterKind, start, code uint16, err error) *Error {
	return &Error{Op: op, Device: device, Kind: kind, Start: start, code: code, Err: err}
}

// CodeOf extracts the transport code from err, 0 if err is not a transport
// error.
func CodeOf(err error) uint16 {
	var te *Error
	if errors.As(err, &te) {
		return te.code
	}
	return 0
}
