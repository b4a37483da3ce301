// internal/registry/types.go
package registry

import (
	"fmt"
	"strings"
)

// CID identifies one characteristic in the table.
type CID uint16

// RegisterKind selects the storage block and the Modbus primitive.
type RegisterKind uint8

const (
	KindHolding RegisterKind = iota
	KindInput
	KindCoil
	KindDiscrete

	kindCount
)

func (k RegisterKind) String() string {
	switch k {
	case KindHolding:
		return "holding"
	case KindInput:
		return "input"
	case KindCoil:
		return "coil"
	case KindDiscrete:
		return "discrete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Digital reports whether the kind carries packed bits.
func (k RegisterKind) Digital() bool {
	return k == KindCoil || k == KindDiscrete
}

// ParseKind accepts the names used in register map files.
func ParseKind(s string) (RegisterKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "holding", "holding_register":
		return KindHolding, nil
	case "input", "input_register":
		return KindInput, nil
	case "coil":
		return KindCoil, nil
	case "discrete", "discrete_input":
		return KindDiscrete, nil
	}
	return 0, fmt.Errorf("registry: unknown register kind %q", s)
}

// ValueType is the typed interpretation of a field.
type ValueType uint8

const (
	TypeU8 ValueType = iota
	TypeU16
	TypeU32
	TypeFloat
	TypeASCII
)

func (t ValueType) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeFloat:
		return "float"
	case TypeASCII:
		return "ascii"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// FixedSize returns the byte size of numeric types; 0 for ASCII.
func (t ValueType) FixedSize() int {
	switch t {
	case TypeU8:
		return 1
	case TypeU16:
		return 2
	case TypeU32, TypeFloat:
		return 4
	default:
		return 0
	}
}

// Numeric reports whether limits apply as (min, max, step).
func (t ValueType) Numeric() bool {
	return t != TypeASCII
}

func ParseType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u8", "uint8":
		return TypeU8, nil
	case "u16", "uint16":
		return TypeU16, nil
	case "u32", "uint32":
		return TypeU32, nil
	case "float", "float32":
		return TypeFloat, nil
	case "ascii":
		return TypeASCII, nil
	}
	return 0, fmt.Errorf("registry: unknown value type %q", s)
}

// Access is a set of capability flags.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite
	// AccessTrigger marks writes that must be confirmed by a read-back.
	AccessTrigger

	AccessReadWrite        = AccessRead | AccessWrite
	AccessReadWriteTrigger = AccessRead | AccessWrite | AccessTrigger
)

func (a Access) Has(f Access) bool { return a&f == f }

// ParseAccess accepts combinations of "r", "w" and "t" (e.g. "rwt").
func ParseAccess(s string) (Access, error) {
	var a Access
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		switch c {
		case 'r':
			a |= AccessRead
		case 'w':
			a |= AccessWrite
		case 't':
			a |= AccessTrigger
		default:
			return 0, fmt.Errorf("registry: unknown access flag %q in %q", c, s)
		}
	}
	return a, nil
}

// Offset is a byte offset into a storage block that may be unset.
type Offset struct {
	at  int
	set bool
}

// Unset is the zero Offset; resolving it fails.
var Unset = Offset{}

// At returns a set offset.
func At(n int) Offset { return Offset{at: n, set: true} }

// Get returns the offset and whether it is set.
func (o Offset) Get() (int, bool) { return o.at, o.set }

func (o Offset) String() string {
	if !o.set {
		return "unset"
	}
	return fmt.Sprintf("%d", o.at)
}

// Limits holds three options whose meaning depends on the kind:
// analog fields use (min, max, step), digital fields use (bitmask, -, -).
type Limits struct {
	Opt1 float64
	Opt2 float64
	Opt3 float64
}

func (l Limits) Min() float64  { return l.Opt1 }
func (l Limits) Max() float64  { return l.Opt2 }
func (l Limits) Step() float64 { return l.Opt3 }

func (l Limits) Bitmask() uint64 {
	if l.Opt1 < 0 {
		return 0
	}
	return uint64(l.Opt1)
}

// Descriptor is one immutable entry of the characteristic table.
type Descriptor struct {
	CID           CID
	Name          string
	Units         string
	DeviceAddress uint8
	Kind          RegisterKind
	RegisterStart uint16
	RegisterCount uint16
	Offset        Offset
	Type          ValueType
	Size          int
	Limits        Limits
	Access        Access
}

// BlockSizes fixes the byte size of each storage block.
// A zero entry is derived from the table extent.
type BlockSizes struct {
	Holding  int
	Input    int
	Coil     int
	Discrete int
}

func (b BlockSizes) of(k RegisterKind) int {
	switch k {
	case KindHolding:
		return b.Holding
	case KindInput:
		return b.Input
	case KindCoil:
		return b.Coil
	case KindDiscrete:
		return b.Discrete
	}
	return 0
}
