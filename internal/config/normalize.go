// internal/config/normalize.go
package config

import (
	"fmt"

	"github.com/tamzrod/modbus-bridge/internal/registry"
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(rf *RegisterFile) {
	if rf == nil {
		return
	}

	for i := range rf.Registers {
		r := &rf.Registers[i]

		if r.Name == "" {
			r.Name = fmt.Sprintf("cid%d", r.CID)
		}
		if r.Access == "" {
			r.Access = "r"
		}

		// Size defaults to the natural size of the type; ascii fills the
		// register range.
		if r.Size == 0 {
			typ, _ := registry.ParseType(r.Type)
			kind, _ := registry.ParseKind(r.Kind)
			switch {
			case typ == registry.TypeASCII:
				r.Size = int(r.Count) * 2
			case kind.Digital() && (int(r.Count)+7)/8 > typ.FixedSize():
				r.Size = (int(r.Count) + 7) / 8
			default:
				r.Size = typ.FixedSize()
			}
		}

		// No offset is assigned here: an unset offset is reported when the
		// field is first resolved.
	}
}
