// internal/registry/codec.go
package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrWireLength is returned when a device payload is shorter than the
// descriptor's register range requires.
var ErrWireLength = errors.New("registry: wire payload too short")

// ErrValueRange is returned when a value cannot be encoded in the field type.
var ErrValueRange = errors.New("registry: value out of range for field type")

// WireLength is the number of payload bytes the register range occupies.
func (d Descriptor) WireLength() int {
	if d.Kind.Digital() {
		return (int(d.RegisterCount) + 7) / 8
	}
	return int(d.RegisterCount) * 2
}

// FromWire converts a device payload (Modbus register bytes, big-endian,
// high word first) into field bytes.
func (d Descriptor) FromWire(wire []byte) ([]byte, error) {
	if fs := d.Type.FixedSize(); d.Size < fs {
		return nil, fmt.Errorf("%w: cid %d: size %d too small for %s", ErrConfiguration, d.CID, d.Size, d.Type)
	}
	out := make([]byte, d.Size)

	if d.Kind.Digital() {
		if len(wire) < d.WireLength() {
			return nil, fmt.Errorf("%w: cid %d: got=%d want=%d", ErrWireLength, d.CID, len(wire), d.WireLength())
		}
		copy(out, wire[:d.WireLength()])
		return out, nil
	}

	need := d.Type.FixedSize()
	switch d.Type {
	case TypeU8:
		need = 2
	case TypeASCII:
		need = 0
	}
	if len(wire) < need {
		return nil, fmt.Errorf("%w: cid %d: got=%d want=%d", ErrWireLength, d.CID, len(wire), need)
	}

	switch d.Type {
	case TypeU8:
		out[0] = wire[1]
	case TypeU16:
		binary.LittleEndian.PutUint16(out, binary.BigEndian.Uint16(wire))
	case TypeU32, TypeFloat:
		binary.LittleEndian.PutUint32(out, binary.BigEndian.Uint32(wire))
	case TypeASCII:
		copy(out, wire)
	}
	return out, nil
}

// ToWire converts field bytes into the payload written to the device.
func (d Descriptor) ToWire(field []byte) []byte {
	out := make([]byte, d.WireLength())

	if d.Kind.Digital() {
		copy(out, field)
		if rem := int(d.RegisterCount) % 8; rem != 0 && len(out) > 0 {
			out[len(out)-1] &= byte(1<<rem) - 1
		}
		return out
	}

	buf := make([]byte, 8)
	copy(buf, field)

	switch d.Type {
	case TypeU8:
		if len(out) >= 2 {
			out[1] = buf[0]
		}
	case TypeU16:
		if len(out) >= 2 {
			binary.BigEndian.PutUint16(out, binary.LittleEndian.Uint16(buf))
		}
	case TypeU32, TypeFloat:
		if len(out) >= 4 {
			binary.BigEndian.PutUint32(out, binary.LittleEndian.Uint32(buf))
		}
	case TypeASCII:
		copy(out, field)
	}
	return out
}

// NumberValue encodes n as a value of the descriptor's type.
func (d Descriptor) NumberValue(n float64) (Value, error) {
	raw := make([]byte, d.Size)
	buf := make([]byte, 8)

	switch d.Type {
	case TypeU8:
		if n < 0 || n > math.MaxUint8 || n != math.Trunc(n) {
			return Value{}, fmt.Errorf("%w: %v as %s", ErrValueRange, n, d.Type)
		}
		buf[0] = uint8(n)
	case TypeU16:
		if n < 0 || n > math.MaxUint16 || n != math.Trunc(n) {
			return Value{}, fmt.Errorf("%w: %v as %s", ErrValueRange, n, d.Type)
		}
		binary.LittleEndian.PutUint16(buf, uint16(n))
	case TypeU32:
		if n < 0 || n > math.MaxUint32 || n != math.Trunc(n) {
			return Value{}, fmt.Errorf("%w: %v as %s", ErrValueRange, n, d.Type)
		}
		binary.LittleEndian.PutUint32(buf, uint32(n))
	case TypeFloat:
		if math.IsNaN(n) || math.Abs(n) > math.MaxFloat32 {
			return Value{}, fmt.Errorf("%w: %v as %s", ErrValueRange, n, d.Type)
		}
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(n)))
	default:
		return Value{}, fmt.Errorf("%w: cid %d is %s, not numeric", ErrValueRange, d.CID, d.Type)
	}

	copy(raw, buf)
	return Value{Type: d.Type, raw: raw}, nil
}

// TextValue encodes s into an ASCII field, zero padded.
func (d Descriptor) TextValue(s string) (Value, error) {
	if d.Type != TypeASCII {
		return Value{}, fmt.Errorf("%w: cid %d is %s, not ascii", ErrValueRange, d.CID, d.Type)
	}
	if len(s) > d.Size {
		return Value{}, fmt.Errorf("%w: %d chars into %d bytes", ErrValueRange, len(s), d.Size)
	}
	raw := make([]byte, d.Size)
	copy(raw, s)
	return Value{Type: d.Type, raw: raw}, nil
}
