// internal/transport/shared.go
package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tamzrod/modbus-bridge/internal/registry"
)

// Shared hands out leases on one session. The session is closed when the
// last outstanding lease is closed.
type Shared struct {
	mu     sync.Mutex
	s      Session
	refs   int
	closed bool
}

func NewShared(s Session) *Shared {
	return &Shared{s: s}
}

// Acquire returns a lease. Closing the lease releases it; it cannot be used
// afterwards.
func (sh *Shared) Acquire() (Session, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.closed {
		return nil, NewError("acquire", 0, 0, 0, CodeClosed, ErrClosed)
	}
	sh.refs++
	return &lease{sh: sh}, nil
}

// Refs is the number of outstanding leases.
func (sh *Shared) Refs() int {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.refs
}

func (sh *Shared) release() error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.refs--
	if sh.refs > 0 || sh.closed {
		return nil
	}
	sh.closed = true
	return sh.s.Close()
}

type lease struct {
	sh       *Shared
	released atomic.Bool
}

func (l *lease) Read(ctx context.Context, device uint8, kind registry.RegisterKind, start, count uint16) ([]byte, error) {
	if l.released.Load() {
		return nil, NewError("read", device, kind, start, CodeClosed, ErrClosed)
	}
	return l.sh.s.Read(ctx, device, kind, start, count)
}

func (l *lease) Write(ctx context.Context, device uint8, kind registry.RegisterKind, start, count uint16, data []byte) error {
	if l.released.Load() {
		return NewError("write", device, kind, start, CodeClosed, ErrClosed)
	}
	return l.sh.s.Write(ctx, device, kind, start, count, data)
}

// Close releases the lease once; later calls are no-ops.
func (l *lease) Close() error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	return l.sh.release()
}
