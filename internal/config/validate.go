// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/modbus-bridge/internal/registry"
)

// Validate checks register map correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(rf *RegisterFile) error {
	if rf == nil {
		return fmt.Errorf("config: register map is nil")
	}

	b := rf.Blocks
	if b.Holding < 0 || b.Input < 0 || b.Coil < 0 || b.Discrete < 0 {
		return fmt.Errorf("config: block sizes must not be negative")
	}

	seen := make(map[uint16]int)
	// key = kind | device | start
	owner := make(map[string]uint16)

	for i, r := range rf.Registers {
		if prev, dup := seen[r.CID]; dup {
			return fmt.Errorf(
				"config: duplicate cid %d at index %d (first seen at index %d)",
				r.CID, i, prev,
			)
		}
		seen[r.CID] = i

		for j := 0; j < len(r.Name); j++ {
			if r.Name[j] > 0x7F {
				return fmt.Errorf("config: cid %d: name must contain ASCII characters only", r.CID)
			}
		}

		kind, err := registry.ParseKind(r.Kind)
		if err != nil {
			return fmt.Errorf("config: cid %d: %w", r.CID, err)
		}
		typ, err := registry.ParseType(r.Type)
		if err != nil {
			return fmt.Errorf("config: cid %d: %w", r.CID, err)
		}
		if _, err := registry.ParseAccess(r.Access); err != nil {
			return fmt.Errorf("config: cid %d: %w", r.CID, err)
		}

		if r.Count == 0 {
			return fmt.Errorf("config: cid %d: count must be positive", r.CID)
		}
		if r.Offset != nil && *r.Offset < 0 {
			return fmt.Errorf("config: cid %d: offset must not be negative", r.CID)
		}
		if len(r.Limits) > 3 {
			return fmt.Errorf("config: cid %d: at most 3 limits, got %d", r.CID, len(r.Limits))
		}
		if r.Size < 0 {
			return fmt.Errorf("config: cid %d: size must not be negative", r.CID)
		}

		if err := validateGeometry(r, kind, typ); err != nil {
			return err
		}

		key := fmt.Sprintf("%s|%d|%d", kind, r.Device, r.Start)
		if prev, exists := owner[key]; exists {
			return fmt.Errorf(
				"config: address collision: kind=%s device=%d start=%d used by cids %d and %d",
				kind, r.Device, r.Start, prev, r.CID,
			)
		}
		owner[key] = r.CID
	}

	return nil
}

func validateGeometry(r RegisterConfig, kind registry.RegisterKind, typ registry.ValueType) error {
	if kind.Digital() {
		if typ == registry.TypeASCII || typ == registry.TypeFloat {
			return fmt.Errorf("config: cid %d: %s cannot hold %s values", r.CID, kind, typ)
		}
		if r.Size != 0 && r.Size < typ.FixedSize() {
			return fmt.Errorf("config: cid %d: size %d too small for %s", r.CID, r.Size, typ)
		}
		if r.Size != 0 && r.Size < (int(r.Count)+7)/8 {
			return fmt.Errorf("config: cid %d: size %d cannot hold %d bits", r.CID, r.Size, r.Count)
		}
		return nil
	}

	wire := int(r.Count) * 2
	if typ == registry.TypeASCII {
		if r.Size > wire {
			return fmt.Errorf("config: cid %d: ascii size %d exceeds %d register bytes", r.CID, r.Size, wire)
		}
		return nil
	}

	need := typ.FixedSize()
	if typ == registry.TypeU8 {
		need = 2
	}
	if wire < need {
		return fmt.Errorf("config: cid %d: %d registers too few for %s", r.CID, r.Count, typ)
	}
	if r.Size != 0 && r.Size < typ.FixedSize() {
		return fmt.Errorf("config: cid %d: size %d too small for %s", r.CID, r.Size, typ)
	}
	return nil
}
