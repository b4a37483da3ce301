// internal/link/link_test.go
package link

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_LogsEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	events := make(chan Event, 3)
	events <- Event{Kind: Up, Interface: "eth0", HardwareAddr: net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}}
	events <- Event{Kind: Down, Interface: "eth0"}
	events <- Event{Kind: Stopped, Interface: "eth0"}
	close(events)

	Watch(events, logger)

	out := buf.String()
	assert.Contains(t, out, `"message":"link up"`)
	assert.Contains(t, out, `"hw_addr":"de:ad:be:ef:00:01"`)
	assert.Contains(t, out, `"message":"link down"`)
	assert.Contains(t, out, `"message":"link stopped"`)
}

type flapper struct {
	mu    sync.Mutex
	flags []net.Flags
}

func (f *flapper) lookup(string) (*net.Interface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.flags) == 0 {
		return nil, errors.New("no such interface")
	}
	fl := f.flags[0]
	if len(f.flags) > 1 {
		f.flags = f.flags[1:]
	}
	return &net.Interface{Name: "eth0", Flags: fl, HardwareAddr: net.HardwareAddr{1, 2, 3, 4, 5, 6}}, nil
}

func TestMonitor_EmitsTransitionsOnly(t *testing.T) {
	running := net.FlagUp | net.FlagRunning
	f := &flapper{flags: []net.Flags{running, running, 0, 0, running}}

	m := NewMonitor("eth0", time.Millisecond)
	m.lookup = f.lookup

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Event)
	go m.Run(ctx, out)

	var kinds []Kind
	for ev := range out {
		kinds = append(kinds, ev.Kind)
		if len(kinds) == 4 {
			cancel()
		}
		require.Equal(t, "eth0", ev.Interface)
	}

	require.GreaterOrEqual(t, len(kinds), 4)
	assert.Equal(t, []Kind{Started, Up, Down, Up}, kinds[:4])
}

func TestMonitor_MissingInterfaceIsDown(t *testing.T) {
	m := NewMonitor("nope0", time.Hour)
	m.lookup = (&flapper{}).lookup

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Event)
	go m.Run(ctx, out)

	assert.Equal(t, Started, (<-out).Kind)
	assert.Equal(t, Down, (<-out).Kind)
	cancel()

	var rest []Kind
	for ev := range out {
		rest = append(rest, ev.Kind)
	}
	assert.Equal(t, []Kind{Stopped}, rest)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMonitorAndWatch_LogStopOnShutdown(t *testing.T) {
	buf := &lockedBuffer{}
	m := NewMonitor("eth0", time.Hour)
	m.lookup = (&flapper{flags: []net.Flags{net.FlagUp | net.FlagRunning}}).lookup

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(events, zerolog.New(buf))
	}()
	go m.Run(ctx, events)

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), `"message":"link up"`)
	}, time.Second, time.Millisecond)
	cancel()
	<-done

	out := buf.String()
	assert.Contains(t, out, `"message":"link started"`)
	assert.Contains(t, out, `"message":"link up"`)
	assert.Contains(t, out, `"message":"link stopped"`)
}
