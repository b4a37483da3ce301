// internal/config/registers.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tamzrod/modbus-bridge/internal/registry"
)

// LoadRegisters reads a register map, validates and normalizes it.
// Unknown keys are rejected.
func LoadRegisters(path string) (*RegisterFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read registers: %w", err)
	}
	return ParseRegisters(data)
}

// ParseRegisters is LoadRegisters on an in-memory document.
func ParseRegisters(data []byte) (*RegisterFile, error) {
	var rf RegisterFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse registers: %w", err)
	}

	if err := Validate(&rf); err != nil {
		return nil, err
	}
	Normalize(&rf)
	return &rf, nil
}

func intp(n int) *int { return &n }

// DefaultRegisters is the built-in table: one u16 holding register, one u16
// input register and one coil on device 1, all at register 0.
func DefaultRegisters() *RegisterFile {
	rf := &RegisterFile{
		Registers: []RegisterConfig{
			{CID: 0, Name: "Holding", Units: "Holding", Device: 1, Kind: "holding", Start: 0, Count: 1,
				Offset: intp(0), Type: "u16", Size: 2, Limits: []float64{0, 65535, 1}, Access: "rwt"},
			{CID: 1, Name: "Input", Units: "Input", Device: 1, Kind: "input", Start: 0, Count: 1,
				Offset: intp(0), Type: "u16", Size: 2, Limits: []float64{0, 65535, 1}, Access: "rwt"},
			{CID: 2, Name: "Coil", Units: "Coil", Device: 1, Kind: "coil", Start: 0, Count: 1,
				Offset: intp(0), Type: "u16", Size: 2, Limits: []float64{1, 0, 0}, Access: "rwt"},
		},
	}
	Normalize(rf)
	return rf
}

// BuildTable converts a validated, normalized register map into registry
// descriptors and block sizes.
func BuildTable(rf *RegisterFile) ([]registry.Descriptor, registry.BlockSizes, error) {
	table := make([]registry.Descriptor, 0, len(rf.Registers))

	for _, r := range rf.Registers {
		kind, err := registry.ParseKind(r.Kind)
		if err != nil {
			return nil, registry.BlockSizes{}, fmt.Errorf("config: cid %d: %w", r.CID, err)
		}
		typ, err := registry.ParseType(r.Type)
		if err != nil {
			return nil, registry.BlockSizes{}, fmt.Errorf("config: cid %d: %w", r.CID, err)
		}
		access, err := registry.ParseAccess(r.Access)
		if err != nil {
			return nil, registry.BlockSizes{}, fmt.Errorf("config: cid %d: %w", r.CID, err)
		}

		off := registry.Unset
		if r.Offset != nil {
			off = registry.At(*r.Offset)
		}

		var lim registry.Limits
		for i, v := range r.Limits {
			switch i {
			case 0:
				lim.Opt1 = v
			case 1:
				lim.Opt2 = v
			case 2:
				lim.Opt3 = v
			}
		}

		table = append(table, registry.Descriptor{
			CID:           registry.CID(r.CID),
			Name:          r.Name,
			Units:         r.Units,
			DeviceAddress: r.Device,
			Kind:          kind,
			RegisterStart: r.Start,
			RegisterCount: r.Count,
			Offset:        off,
			Type:          typ,
			Size:          r.Size,
			Limits:        lim,
			Access:        access,
		})
	}

	sizes := registry.BlockSizes{
		Holding:  rf.Blocks.Holding,
		Input:    rf.Blocks.Input,
		Coil:     rf.Blocks.Coil,
		Discrete: rf.Blocks.Discrete,
	}
	return table, sizes, nil
}
