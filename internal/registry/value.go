// internal/registry/value.go
package registry

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Value is a typed view over field bytes (little-endian for numbers).
type Value struct {
	Type ValueType
	raw  []byte
}

// RawValue wraps field bytes as a value of type t.
func RawValue(t ValueType, b []byte) Value {
	out := make([]byte, len(b))
	copy(out, b)
	return Value{Type: t, raw: out}
}

// Raw returns a copy of the field bytes.
func (v Value) Raw() []byte {
	out := make([]byte, len(v.raw))
	copy(out, v.raw)
	return out
}

// Bits interprets up to the first 8 bytes as a little-endian integer.
func (v Value) Bits() uint64 {
	var buf [8]byte
	copy(buf[:], v.raw)
	return binary.LittleEndian.Uint64(buf[:])
}

// Number returns the numeric value; false for ASCII.
func (v Value) Number() (float64, bool) {
	switch v.Type {
	case TypeU8:
		return float64(uint8(v.Bits())), true
	case TypeU16:
		return float64(uint16(v.Bits())), true
	case TypeU32:
		return float64(uint32(v.Bits())), true
	case TypeFloat:
		return float64(math.Float32frombits(uint32(v.Bits()))), true
	}
	return 0, false
}

// Text returns the field as a string without trailing NUL padding.
func (v Value) Text() string {
	return string(bytes.TrimRight(v.raw, "\x00"))
}

// JSON returns the representation used in API replies.
func (v Value) JSON() any {
	switch v.Type {
	case TypeASCII:
		return v.Text()
	case TypeFloat:
		n, _ := v.Number()
		return n
	default:
		n, _ := v.Number()
		return uint64(n)
	}
}

// Equal compares type and bytes.
func (v Value) Equal(o Value) bool {
	return v.Type == o.Type && bytes.Equal(v.raw, o.raw)
}
