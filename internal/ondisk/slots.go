// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package ondisk provides views over the fixed-width structures stored
// in a cdb file.
package ondisk

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bpowers/cdb/internal/hash"
)

// SlotSize is the width of a hash table slot: a 32-bit hash followed by
// a 32-bit record offset, both little-endian.
const SlotSize = 4 + 4

var ErrTableFull = errors.New("hash table full")

// Slots is a view into a byte array as if it was a []struct{hash, offset uint32}.
// It may be backed by the heap or by an mmap'd file.
//
// A slot whose offset is 0 is empty: records always live after the
// file header, so 0 is never a real record offset.
type Slots []byte

// NewSlots allocates an empty table of n slots on the heap.
func NewSlots(n uint32) Slots {
	return make(Slots, int(n)*SlotSize)
}

// Len returns the number of slots in the table.
func (s Slots) Len() uint32 {
	return uint32(len(s) / SlotSize)
}

// At returns the hash and record offset stored in slot i.
func (s Slots) At(i uint32) (h, off uint32) {
	b := s[int(i)*SlotSize : int(i)*SlotSize+SlotSize]
	// bounds check elimination
	_ = b[SlotSize-1]
	return binary.LittleEndian.Uint32(b[0:4]), binary.LittleEndian.Uint32(b[4:8])
}

// Set stores a hash and record offset in slot i.
func (s Slots) Set(i, h, off uint32) {
	b := s[int(i)*SlotSize : int(i)*SlotSize+SlotSize]
	_ = b[SlotSize-1]
	binary.LittleEndian.PutUint32(b[0:4], h)
	binary.LittleEndian.PutUint32(b[4:8], off)
}

// Insert places (h, off) in the first empty slot at or after
// hash.Slot(h, s.Len()), wrapping around the end of the table.  Inserting
// records in order keeps that order along every probe chain.
func (s Slots) Insert(h, off uint32) (uint32, error) {
	if off == 0 {
		return 0, errors.New("invariant broken: record offsets are always > 0")
	}
	n := s.Len()
	if n == 0 {
		return 0, ErrTableFull
	}
	slot := hash.Slot(h, n)
	for probes := uint32(0); probes < n; probes++ {
		if _, existing := s.At(slot); existing == 0 {
			s.Set(slot, h, off)
			return slot, nil
		}
		slot++
		if slot == n {
			slot = 0
		}
	}
	return 0, fmt.Errorf("insert hash %#x: %w (%d slots)", h, ErrTableFull, n)
}

// Count returns the number of non-empty slots.
func (s Slots) Count() int {
	count := 0
	for i := uint32(0); i < s.Len(); i++ {
		if _, off := s.At(i); off != 0 {
			count++
		}
	}
	return count
}
