// internal/registry/storage.go
package registry

import "sync"

// block is one flat byte buffer guarded by its own lock.
type block struct {
	mu  sync.RWMutex
	buf []byte
}

// Storage owns the four register blocks for the process lifetime.
type Storage struct {
	blocks [kindCount]*block
}

func newStorage(sizes [kindCount]int) *Storage {
	s := &Storage{}
	for k := range s.blocks {
		s.blocks[k] = &block{buf: make([]byte, sizes[k])}
	}
	return s
}

// Field is a resolved location inside one storage block.
// Load and Store move the whole field under the block lock, so a reader
// sees either the old or the new value, never a mix.
type Field struct {
	blk  *block
	kind RegisterKind
	off  int
	size int
}

func (f Field) Kind() RegisterKind { return f.kind }
func (f Field) Offset() int        { return f.off }
func (f Field) Size() int          { return f.size }

// Valid reports whether the field was produced by Resolve.
func (f Field) Valid() bool { return f.blk != nil }

// Load returns a copy of the field bytes.
func (f Field) Load() []byte {
	if f.blk == nil {
		return nil
	}
	f.blk.mu.RLock()
	defer f.blk.mu.RUnlock()

	out := make([]byte, f.size)
	copy(out, f.blk.buf[f.off:f.off+f.size])
	return out
}

// Store replaces the field bytes. Short input is zero padded, long input is
// truncated to the field size.
func (f Field) Store(b []byte) {
	if f.blk == nil {
		return
	}
	f.blk.mu.Lock()
	defer f.blk.mu.Unlock()

	dst := f.blk.buf[f.off : f.off+f.size]
	n := copy(dst, b)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// Fill sets every byte of the field to v.
func (f Field) Fill(v byte) {
	if f.blk == nil {
		return
	}
	f.blk.mu.Lock()
	defer f.blk.mu.Unlock()

	dst := f.blk.buf[f.off : f.off+f.size]
	for i := range dst {
		dst[i] = v
	}
}

// Value returns a typed view over the current field bytes.
func (f Field) Value(t ValueType) Value {
	return Value{Type: t, raw: f.Load()}
}
