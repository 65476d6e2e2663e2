// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRecords(t *testing.T, pairs ...string) []byte {
	t.Helper()
	require.True(t, len(pairs)%2 == 0)

	var fileBytes safeBuffer
	w, err := NewWriter(&fileBytes)
	require.NoError(t, err)
	for i := 0; i < len(pairs); i += 2 {
		_, err := w.Write([]byte(pairs[i]), []byte(pairs[i+1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Finish())
	return fileBytes.Bytes()
}

func TestReader_ReadAt(t *testing.T) {
	data := buildRecords(t, "susan", "victoria", "ted", "tucker")
	r := NewReader(data, int64(len(data)))

	k, v, err := r.ReadAt(FileHeaderSize)
	require.NoError(t, err)
	assert.Equal(t, "susan", string(k))
	assert.Equal(t, "victoria", string(v))

	// views are capped at the end of their span
	assert.Equal(t, len(k), cap(k))
	assert.Equal(t, len(v), cap(v))
	v = append(v, 'X')
	k2, v2, err := r.ReadAt(FileHeaderSize + RecordHeaderSize + 5 + 8)
	require.NoError(t, err)
	assert.Equal(t, "ted", string(k2))
	assert.Equal(t, "tucker", string(v2))
	_ = v
}

func TestReader_Bounds(t *testing.T) {
	data := buildRecords(t, "susan", "victoria")
	r := NewReader(data, int64(len(data)))

	// offset 0 is where an empty slot points
	_, _, err := r.ReadAt(0)
	assert.True(t, errors.Is(err, ErrCorrupt))
	_, _, err = r.ReadAt(FileHeaderSize - 1)
	assert.True(t, errors.Is(err, ErrCorrupt))

	// a record header that runs off the end
	_, _, err = r.ReadAt(uint32(len(data) - 4))
	assert.True(t, errors.Is(err, ErrCorrupt))
	_, _, err = r.ReadAt(^uint32(0))
	assert.True(t, errors.Is(err, ErrCorrupt))

	// a value length pointing past the end of the region
	binary.LittleEndian.PutUint32(data[FileHeaderSize+4:], 1<<31)
	_, _, err = r.ReadAt(FileHeaderSize)
	assert.True(t, errors.Is(err, ErrCorrupt))

	// a shortened region hides records past its end
	data = buildRecords(t, "susan", "victoria")
	r = NewReader(data, FileHeaderSize+RecordHeaderSize+5)
	_, _, err = r.ReadAt(FileHeaderSize)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestReader_ClampsEnd(t *testing.T) {
	data := buildRecords(t, "a", "b")
	r := NewReader(data, 1<<30)
	assert.Equal(t, int64(len(data)), r.End())
}

func TestIter_Order(t *testing.T) {
	data := buildRecords(t, "susan", "victoria", "ted", "tucker", "", "")
	r := NewReader(data, int64(len(data)))

	var keys, values []string
	it := r.Iter()
	for item, ok := it.Next(); ok; item, ok = it.Next() {
		keys = append(keys, string(item.Key))
		values = append(values, string(item.Value))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"susan", "ted", ""}, keys)
	assert.Equal(t, []string{"victoria", "tucker", ""}, values)

	// exhausted iterators stay exhausted
	_, ok := it.Next()
	assert.False(t, ok)
}

func TestIter_Empty(t *testing.T) {
	data := buildRecords(t)
	it := NewReader(data, int64(len(data))).Iter()
	_, ok := it.Next()
	assert.False(t, ok)
	assert.NoError(t, it.Err())
}

func TestIter_Corrupt(t *testing.T) {
	data := buildRecords(t, "susan", "victoria", "ted", "tucker")
	// make the second record's key length run off the end
	binary.LittleEndian.PutUint32(data[FileHeaderSize+RecordHeaderSize+5+8:], 1000)
	it := NewReader(data, int64(len(data))).Iter()

	item, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "susan", string(item.Key))

	_, ok = it.Next()
	assert.False(t, ok)
	assert.True(t, errors.Is(it.Err(), ErrCorrupt))
}

func TestReader_NoAllocs(t *testing.T) {
	data := buildRecords(t, "susan", "victoria")
	r := NewReader(data, int64(len(data)))
	allocs := testing.AllocsPerRun(10, func() {
		_, _, err := r.ReadAt(FileHeaderSize)
		if err != nil {
			t.Fatal(err)
		}
	})
	require.Zero(t, allocs)
}
