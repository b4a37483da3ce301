// internal/poller/poller_test.go
package poller

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/modbus-bridge/internal/registry"
	"github.com/tamzrod/modbus-bridge/internal/status"
	"github.com/tamzrod/modbus-bridge/internal/transport"
)

type addr struct {
	kind  registry.RegisterKind
	start uint16
}

type written struct {
	addr
	device uint8
	count  uint16
	data   []byte
}

type fakeSession struct {
	mu     sync.Mutex
	data   map[addr][]byte
	fail   map[addr]error
	reads  []addr
	writes []written
	closes int
}

func newFakeSession() *fakeSession {
	return &fakeSession{data: map[addr][]byte{}, fail: map[addr]error{}}
}

func (f *fakeSession) Read(_ context.Context, _ uint8, kind registry.RegisterKind, start, count uint16) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a := addr{kind, start}
	f.reads = append(f.reads, a)
	if err := f.fail[a]; err != nil {
		return nil, err
	}
	if b, ok := f.data[a]; ok {
		return append([]byte(nil), b...), nil
	}
	if kind.Digital() {
		return make([]byte, (int(count)+7)/8), nil
	}
	return make([]byte, int(count)*2), nil
}

func (f *fakeSession) Write(_ context.Context, device uint8, kind registry.RegisterKind, start, count uint16, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	a := addr{kind, start}
	if err := f.fail[a]; err != nil {
		return err
	}
	f.writes = append(f.writes, written{addr: a, device: device, count: count, data: append([]byte(nil), data...)})
	f.data[a] = append([]byte(nil), data...)
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// signedTable has one float characteristic with limits around zero.
func signedTable() []registry.Descriptor {
	return []registry.Descriptor{
		{CID: 0, Name: "Temperature", DeviceAddress: 1, Kind: registry.KindHolding, RegisterStart: 20, RegisterCount: 2,
			Offset: registry.At(0), Type: registry.TypeFloat, Size: 4,
			Limits: registry.Limits{Opt1: -10, Opt2: 10, Opt3: 0.5}, Access: registry.AccessRead},
	}
}

func floatWire(f float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(f))
	return b
}

func testTable() []registry.Descriptor {
	return []registry.Descriptor{
		{CID: 0, Name: "Holding", DeviceAddress: 1, Kind: registry.KindHolding, RegisterStart: 0, RegisterCount: 1,
			Offset: registry.At(0), Type: registry.TypeU16, Size: 2,
			Limits: registry.Limits{Opt1: 0, Opt2: 100, Opt3: 1}, Access: registry.AccessReadWriteTrigger},
		{CID: 1, Name: "Input", DeviceAddress: 1, Kind: registry.KindInput, RegisterStart: 0, RegisterCount: 1,
			Offset: registry.At(0), Type: registry.TypeU16, Size: 2,
			Limits: registry.Limits{Opt1: 0, Opt2: 100, Opt3: 1}, Access: registry.AccessRead},
		{CID: 2, Name: "Coil", DeviceAddress: 1, Kind: registry.KindCoil, RegisterStart: 0, RegisterCount: 8,
			Offset: registry.At(0), Type: registry.TypeU8, Size: 1,
			Limits: registry.Limits{Opt1: 0x01}, Access: registry.AccessReadWrite},
	}
}

func newEngine(t *testing.T, table []registry.Descriptor, sess transport.Session, c Config) *Engine {
	t.Helper()

	reg, err := registry.New(table, registry.BlockSizes{})
	require.NoError(t, err)
	e, err := New(c, reg, sess, zerolog.Nop(), nil)
	require.NoError(t, err)
	return e
}

func quick(retries int) Config {
	return Config{Retries: retries}
}

// ---- characteristic access ----

func TestReadCharacteristic_StoresDecodedValue(t *testing.T) {
	sess := newFakeSession()
	sess.data[addr{registry.KindHolding, 0}] = []byte{0x01, 0x02}
	e := newEngine(t, testTable(), sess, quick(1))

	v, field, err := e.ReadCharacteristic(context.Background(), 0)
	require.NoError(t, err)

	n, ok := v.Number()
	require.True(t, ok)
	assert.Equal(t, float64(0x0102), n)
	assert.Equal(t, []byte{0x02, 0x01}, field.Load(), "storage is little-endian")
}

func TestReadCharacteristic_NotFound(t *testing.T) {
	e := newEngine(t, testTable(), newFakeSession(), quick(1))

	_, _, err := e.ReadCharacteristic(context.Background(), 9)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestReadCharacteristic_TransportErrorSurfaced(t *testing.T) {
	sess := newFakeSession()
	sess.fail[addr{registry.KindInput, 0}] = transport.NewError("read", 1, registry.KindInput, 0, transport.CodeTimeout, errors.New("timeout"))
	e := newEngine(t, testTable(), sess, quick(1))

	_, _, err := e.ReadCharacteristic(context.Background(), 1)
	assert.Equal(t, transport.CodeTimeout, transport.CodeOf(err), "err=%v", err)
}

func TestAccessDenied(t *testing.T) {
	table := testTable()
	table[0].Access = registry.AccessWrite
	sess := newFakeSession()
	e := newEngine(t, table, sess, quick(1))

	_, _, err := e.ReadCharacteristic(context.Background(), 0)
	assert.ErrorIs(t, err, ErrAccessDenied)

	v, _ := table[1].NumberValue(1)
	assert.ErrorIs(t, e.WriteCharacteristic(context.Background(), 1, v), ErrAccessDenied)
	assert.Empty(t, sess.reads)
	assert.Empty(t, sess.writes)
}

func TestWriteCharacteristic_TriggerReadsBack(t *testing.T) {
	sess := newFakeSession()
	e := newEngine(t, testTable(), sess, quick(1))

	v, err := testTable()[0].NumberValue(513)
	require.NoError(t, err)
	require.NoError(t, e.WriteCharacteristic(context.Background(), 0, v))

	require.Len(t, sess.writes, 1)
	w := sess.writes[0]
	assert.Equal(t, uint8(1), w.device)
	assert.Equal(t, uint16(1), w.count)
	assert.Equal(t, []byte{0x02, 0x01}, w.data, "wire is big-endian")
	assert.Len(t, sess.reads, 1, "read-back")
}

func TestWriteCharacteristic_TypeMismatch(t *testing.T) {
	e := newEngine(t, testTable(), newFakeSession(), quick(1))
	v := registry.RawValue(registry.TypeFloat, []byte{0, 0, 0, 0})

	assert.ErrorIs(t, e.WriteCharacteristic(context.Background(), 0, v), registry.ErrValueRange)
}

// ---- polling cycle ----

func TestCycle_NoAlarmRunsAllRetries(t *testing.T) {
	sess := newFakeSession()
	e := newEngine(t, testTable(), sess, quick(4))

	out, err := e.RunPollingCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, status.StateClear, out.State)
	assert.Equal(t, 4, out.Sweeps)
	assert.Equal(t, 12, out.Reads)
	assert.Len(t, sess.reads, 12)
	assert.Equal(t, 1, sess.closes)
}

func TestCycle_AnalogAlarmStopsImmediately(t *testing.T) {
	sess := newFakeSession()
	sess.data[addr{registry.KindInput, 0}] = []byte{0x00, 0xC8} // 200 > max
	e := newEngine(t, testTable(), sess, quick(30))

	out, err := e.RunPollingCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, status.StateAlarm, out.State)
	assert.Equal(t, registry.CID(1), out.AlarmCID)
	assert.Equal(t, "Input", out.AlarmName)
	// CID 2 is never read once CID 1 trips.
	assert.Equal(t, 1, out.Sweeps)
	assert.Len(t, sess.reads, 2)
}

func TestCycle_SignedLimits(t *testing.T) {
	cases := []struct {
		value float32
		state status.State
	}{
		{11, status.StateAlarm},
		{5, status.StateClear},
		{-11, status.StateAlarm},
		{-10, status.StateClear},
		{10, status.StateClear},
	}

	for _, tc := range cases {
		sess := newFakeSession()
		sess.data[addr{registry.KindHolding, 20}] = floatWire(tc.value)
		e := newEngine(t, signedTable(), sess, quick(3))

		out, err := e.RunPollingCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tc.state, out.State, "value %v", tc.value)
		if tc.state == status.StateAlarm {
			assert.Equal(t, 1, out.Sweeps, "value %v", tc.value)
		}
	}
}

func TestCycle_DigitalBitmaskAlarm(t *testing.T) {
	sess := newFakeSession()
	sess.data[addr{registry.KindCoil, 0}] = []byte{0x02}
	e := newEngine(t, testTable(), sess, quick(2))

	out, _ := e.RunPollingCycle(context.Background())
	assert.Equal(t, status.StateClear, out.State, "bit outside mask tripped alarm")

	sess2 := newFakeSession()
	sess2.data[addr{registry.KindCoil, 0}] = []byte{0x03}
	e2 := newEngine(t, testTable(), sess2, quick(2))

	out, _ = e2.RunPollingCycle(context.Background())
	assert.Equal(t, status.StateAlarm, out.State)
	assert.Equal(t, registry.CID(2), out.AlarmCID)
}

func TestCycle_TransportErrorSkipsCharacteristic(t *testing.T) {
	sess := newFakeSession()
	sess.fail[addr{registry.KindHolding, 0}] = transport.NewError("read", 1, registry.KindHolding, 0, transport.CodeIO, errors.New("crc"))
	sess.data[addr{registry.KindInput, 0}] = []byte{0xFF, 0xFF}
	e := newEngine(t, testTable(), sess, quick(3))

	out, err := e.RunPollingCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, status.StateAlarm, out.State)
	assert.Equal(t, registry.CID(1), out.AlarmCID)
	assert.Equal(t, 1, out.ReadErrors)
}

func TestCycle_ConfigurationErrorAborts(t *testing.T) {
	table := testTable()
	table[1].Offset = registry.Unset
	sess := newFakeSession()
	e := newEngine(t, table, sess, quick(3))

	out, err := e.RunPollingCycle(context.Background())
	assert.ErrorIs(t, err, registry.ErrInvalidOffset)
	assert.Equal(t, status.StateFailed, out.State)
	assert.Equal(t, 1, sess.closes, "lease released on abort")
}

func TestCycle_SparseTableEndsAtFirstGap(t *testing.T) {
	table := testTable()
	table[1].CID = 5
	sess := newFakeSession()
	e := newEngine(t, table, sess, quick(1))

	out, err := e.RunPollingCycle(context.Background())
	require.NoError(t, err)

	// CID 0 read, CID 1 missing ends the sweep.
	assert.Equal(t, 1, out.Reads)
	assert.Len(t, sess.reads, 1)
}

func TestCycle_EchoRefreshesPattern(t *testing.T) {
	table := append(testTable(), registry.Descriptor{
		CID: 3, Name: "Echo", DeviceAddress: 1, Kind: registry.KindHolding, RegisterStart: 10, RegisterCount: 2,
		Offset: registry.At(2), Type: registry.TypeASCII, Size: 4,
		Limits: registry.Limits{Opt1: 1, Opt2: 0}, Access: registry.AccessReadWrite,
	})
	sess := newFakeSession()
	c := quick(2)
	c.EchoEnabled, c.EchoCID, c.EchoPattern = true, 3, 0x55
	e := newEngine(t, table, sess, c)

	out, err := e.RunPollingCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.StateClear, out.State, "echo characteristic is never alarm-checked")

	// First sweep writes the pattern; the second reads it back unchanged.
	require.Len(t, sess.writes, 1)
	assert.Equal(t, uint16(10), sess.writes[0].start)
	assert.Equal(t, "UUUU", string(sess.writes[0].data))
}

func TestCycle_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess := newFakeSession()
	e := newEngine(t, testTable(), sess, Config{Retries: 5, ReadDelay: 1})

	out, err := e.RunPollingCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, status.StateAborted, out.State)
}

func TestCycle_ZeroRetries(t *testing.T) {
	sess := newFakeSession()
	e := newEngine(t, testTable(), sess, quick(0))

	out, err := e.RunPollingCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.StateClear, out.State)
	assert.Empty(t, sess.reads)
}

// ---- runner ----

func TestRunner_SingleCyclePublishesOutcome(t *testing.T) {
	base := newFakeSession()
	base.data[addr{registry.KindHolding, 0}] = []byte{0x01, 0x00} // 256 > max
	shared := transport.NewShared(base)

	// Held by the API in production; keeps the base session open.
	keep, err := shared.Acquire()
	require.NoError(t, err)
	defer keep.Close()

	reg, err := registry.New(testTable(), registry.BlockSizes{})
	require.NoError(t, err)
	store := status.NewStore()

	r := &Runner{Config: quick(3), Registry: reg, Shared: shared, Store: store, Logger: zerolog.Nop()}
	require.NoError(t, r.Run(context.Background()))

	snap := store.Snapshot()
	assert.Equal(t, status.HealthAlarm, snap.Health)
	assert.Equal(t, registry.CID(0), snap.Last.AlarmCID)
	assert.Equal(t, uint64(1), snap.Cycles)
	assert.Equal(t, 1, shared.Refs(), "cycle lease released")
	assert.Zero(t, base.closes)
}
