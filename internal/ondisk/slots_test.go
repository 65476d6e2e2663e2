// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ondisk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlots_SetAt(t *testing.T) {
	const tableLen = 12
	s := NewSlots(tableLen)
	require.Equal(t, uint32(tableLen), s.Len())
	require.Equal(t, tableLen*SlotSize, len(s))

	for i := uint32(0); i < tableLen; i++ {
		s.Set(i, i*3, 2048+i)
	}
	for i := uint32(0); i < tableLen; i++ {
		h, off := s.At(i)
		assert.Equal(t, i*3, h)
		assert.Equal(t, 2048+i, off)
	}

	// little-endian on disk
	assert.Equal(t, []byte{3, 0, 0, 0, 0x01, 0x08, 0, 0}, []byte(s[SlotSize:2*SlotSize]))

	assert.Panics(t, func() {
		s.At(tableLen)
	})
}

func TestSlots_Insert(t *testing.T) {
	s := NewSlots(4)

	// (h / 256) % 4 == 1 for all three: they chain from slot 1
	slot, err := s.Insert(0x100, 2048)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), slot)
	slot, err = s.Insert(0x500, 3000)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), slot)
	slot, err = s.Insert(0x900, 4000)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), slot)

	// wraps around to slot 0
	slot, err = s.Insert(0x300, 5000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), slot)
	assert.Equal(t, 4, s.Count())

	_, err = s.Insert(0x100, 6000)
	assert.True(t, errors.Is(err, ErrTableFull))

	_, err = NewSlots(0).Insert(0x100, 2048)
	assert.True(t, errors.Is(err, ErrTableFull))
}

func TestSlots_InsertZeroHash(t *testing.T) {
	s := NewSlots(2)

	// a record whose hash is 0 must still occupy its slot
	slot, err := s.Insert(0, 2048)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), slot)

	slot, err = s.Insert(0, 2100)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), slot)

	h, off := s.At(0)
	assert.Equal(t, uint32(0), h)
	assert.Equal(t, uint32(2048), off)
	assert.Equal(t, 2, s.Count())
}

func TestSlots_InsertRejectsZeroOffset(t *testing.T) {
	_, err := NewSlots(2).Insert(7, 0)
	assert.Error(t, err)
}
