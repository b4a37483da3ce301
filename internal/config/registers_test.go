// internal/config/registers_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-bridge/internal/registry"
)

const sampleRegisters = `
blocks:
  holding: 32
registers:
  - cid: 0
    name: Setpoint
    units: degC
    device: 2
    kind: holding
    start: 100
    count: 2
    offset: 0
    type: float
    limits: [-10, 80, 0.5]
    access: rwt
  - cid: 1
    name: Inputs
    device: 2
    kind: discrete
    start: 0
    count: 8
    offset: 0
    type: u8
    limits: [3]
  - cid: 2
    name: Serial
    device: 2
    kind: holding
    start: 200
    count: 4
    type: ascii
`

func TestParseRegisters_BuildsDescriptors(t *testing.T) {
	rf, err := ParseRegisters([]byte(sampleRegisters))
	require.NoError(t, err)

	table, sizes, err := BuildTable(rf)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, 32, sizes.Holding)

	sp := table[0]
	assert.Equal(t, registry.KindHolding, sp.Kind)
	assert.Equal(t, registry.TypeFloat, sp.Type)
	assert.Equal(t, 4, sp.Size)
	assert.Equal(t, -10.0, sp.Limits.Min())
	assert.Equal(t, 80.0, sp.Limits.Max())
	assert.True(t, sp.Access.Has(registry.AccessReadWriteTrigger))

	in := table[1]
	assert.Equal(t, registry.KindDiscrete, in.Kind)
	assert.Equal(t, uint64(3), in.Limits.Bitmask())
	assert.Equal(t, registry.AccessRead, in.Access)

	serial := table[2]
	_, set := serial.Offset.Get()
	assert.False(t, set)
	assert.Equal(t, 8, serial.Size)
}

func TestParseRegisters_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseRegisters([]byte("registers:\n  - cid: 0\n    kind: holding\n    colour: red\n"))
	require.Error(t, err)
}

func TestParseRegisters_EmptyDocument(t *testing.T) {
	rf, err := ParseRegisters(nil)
	require.NoError(t, err)
	assert.Empty(t, rf.Registers)
}

func TestLoadRegisters_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegisters), 0o600))

	rf, err := LoadRegisters(path)
	require.NoError(t, err)
	assert.Len(t, rf.Registers, 3)

	_, err = LoadRegisters(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultRegisters_BuildRegistry(t *testing.T) {
	table, sizes, err := BuildTable(DefaultRegisters())
	require.NoError(t, err)

	reg, err := registry.New(table, sizes)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())

	for cid := registry.CID(0); cid < 3; cid++ {
		d, err := reg.LookupByID(cid)
		require.NoError(t, err)
		_, err = reg.Resolve(d)
		require.NoError(t, err)
	}

	coil, err := reg.LookupByAddress(registry.KindCoil, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, registry.CID(2), coil.CID)
	assert.Equal(t, uint64(1), coil.Limits.Bitmask())
}
