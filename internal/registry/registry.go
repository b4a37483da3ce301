// internal/registry/registry.go

// Package registry holds the static characteristic table and the storage
// blocks its fields live in. After New it is a read-only mapping service;
// only field contents change.
package registry

import (
	"fmt"
	"sort"
)

type addrKey struct {
	device   uint8
	register uint16
}

// Registry maps CIDs to descriptors and descriptors to storage fields.
type Registry struct {
	table   []Descriptor
	byID    map[CID]int
	byAddr  [kindCount]map[addrKey]CID
	storage *Storage
}

// New builds the registry. CIDs must be unique. Offsets are not checked
// here; an unset or out-of-range offset fails at Resolve.
func New(table []Descriptor, sizes BlockSizes) (*Registry, error) {
	r := &Registry{
		table: make([]Descriptor, len(table)),
		byID:  make(map[CID]int, len(table)),
	}
	copy(r.table, table)

	for k := range r.byAddr {
		r.byAddr[k] = make(map[addrKey]CID)
	}

	var extent [kindCount]int
	for i, d := range r.table {
		if d.Kind >= kindCount {
			return nil, fmt.Errorf("%w: cid %d: unknown register kind %d", ErrConfiguration, d.CID, d.Kind)
		}
		if _, dup := r.byID[d.CID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateCID, d.CID)
		}
		r.byID[d.CID] = i

		// First definition wins for address lookups.
		key := addrKey{device: d.DeviceAddress, register: d.RegisterStart}
		if _, ok := r.byAddr[d.Kind][key]; !ok {
			r.byAddr[d.Kind][key] = d.CID
		}

		if off, ok := d.Offset.Get(); ok && off >= 0 {
			if end := off + d.Size; end > extent[d.Kind] {
				extent[d.Kind] = end
			}
		}
	}

	var final [kindCount]int
	for k := RegisterKind(0); k < kindCount; k++ {
		final[k] = sizes.of(k)
		if final[k] == 0 {
			final[k] = extent[k]
		}
	}

	r.storage = newStorage(final)
	return r, nil
}

// Len is the number of defined characteristics.
func (r *Registry) Len() int { return len(r.table) }

// Descriptors returns a copy of the table ordered by CID.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.table))
	copy(out, r.table)
	sort.Slice(out, func(i, j int) bool { return out[i].CID < out[j].CID })
	return out
}

// LookupByID returns the descriptor for cid or ErrNotFound.
func (r *Registry) LookupByID(cid CID) (Descriptor, error) {
	i, ok := r.byID[cid]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: cid %d", ErrNotFound, cid)
	}
	return r.table[i], nil
}

// LookupByAddress finds the characteristic of the given kind whose register
// range starts at register on device.
func (r *Registry) LookupByAddress(kind RegisterKind, device uint8, register uint16) (Descriptor, error) {
	if kind >= kindCount {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrNotFound, kind)
	}
	cid, ok := r.byAddr[kind][addrKey{device: device, register: register}]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s device=%d register=%d", ErrNotFound, kind, device, register)
	}
	return r.LookupByID(cid)
}

// Resolve returns the storage field of d inside the block for d.Kind.
func (r *Registry) Resolve(d Descriptor) (Field, error) {
	off, ok := d.Offset.Get()
	if !ok {
		return Field{}, fmt.Errorf("%w: cid %d", ErrInvalidOffset, d.CID)
	}
	if d.Kind >= kindCount {
		return Field{}, fmt.Errorf("%w: cid %d: unknown register kind %d", ErrConfiguration, d.CID, d.Kind)
	}

	blk := r.storage.blocks[d.Kind]
	if off < 0 || d.Size <= 0 || off+d.Size > len(blk.buf) {
		return Field{}, fmt.Errorf("%w: cid %d offset=%d size=%d block=%d",
			ErrOffsetRange, d.CID, off, d.Size, len(blk.buf))
	}

	return Field{blk: blk, kind: d.Kind, off: off, size: d.Size}, nil
}

// BlockSize reports the allocated size of one block.
func (r *Registry) BlockSize(k RegisterKind) int {
	if k >= kindCount {
		return 0
	}
	return len(r.storage.blocks[k].buf)
}
