// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package index

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/hash"
	"github.com/bpowers/cdb/internal/ondisk"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type testPair struct {
	key, value string
}

// buildFile writes pairs through a datafile.Writer and a FastHighMem
// Accumulator, returning the complete file contents.
func buildFile(t *testing.T, pairs []testPair) ([]byte, *Header, int64) {
	t.Helper()

	f := &fakeFile{}
	w, err := datafile.NewWriter(f)
	require.NoError(t, err)
	acc := NewAccumulator(FastHighMem)
	for _, p := range pairs {
		off, err := w.Write([]byte(p.key), []byte(p.value))
		require.NoError(t, err)
		acc.Add(hash.Sum([]byte(p.key)), off)
	}
	recordsEnd := w.Offset()
	h, err := acc.WriteTables(w, discard)
	require.NoError(t, err)
	require.NoError(t, w.Finish())
	require.NoError(t, h.Update(f))
	return f.buf, h, recordsEnd
}

func numberedPairs(n int) []testPair {
	pairs := make([]testPair, 0, n)
	for i := 0; i < n; i++ {
		s := strconv.Itoa(i)
		pairs = append(pairs, testPair{key: "key" + s, value: "value" + s})
	}
	return pairs
}

func TestBuildType(t *testing.T) {
	assert.NoError(t, FastHighMem.Valid())
	assert.NoError(t, SlowLowMem.Valid())
	assert.True(t, errors.Is(BuildType(7).Valid(), ErrUnknownBuildType))
	assert.Equal(t, "SlowLowMem", SlowLowMem.String())
	assert.Equal(t, "BuildType(7)", BuildType(7).String())
}

func TestAccumulator_OnePair(t *testing.T) {
	contents, h, recordsEnd := buildFile(t, []testPair{{"Hi", "there"}})

	assert.Equal(t, int64(HeaderSize+8+2+5), recordsEnd)
	assert.Equal(t, HeaderSize+8+2+5+2*ondisk.SlotSize, len(contents))

	b := hash.Bucket(hash.Sum([]byte("Hi")))
	assert.Equal(t, Entry{Offset: uint32(recordsEnd), Slots: 2}, h[b])
	assert.Equal(t, 1, h.Populated())

	slots := ondisk.Slots(contents[recordsEnd:])
	// "Hi" starts probing at slot 1
	hh, off := slots.At(1)
	assert.Equal(t, hash.Sum([]byte("Hi")), hh)
	assert.Equal(t, uint32(HeaderSize), off)
	_, off = slots.At(0)
	assert.Equal(t, uint32(0), off)
}

func TestAccumulator_TablesSize(t *testing.T) {
	acc := NewAccumulator(SlowLowMem)
	for i := 0; i < 5; i++ {
		acc.Add(uint32(i), uint32(HeaderSize+i))
	}
	assert.Equal(t, int64(5), acc.Len())
	assert.Equal(t, int64(5*2*ondisk.SlotSize), acc.TablesSize())
	assert.Equal(t, uint32(1), acc.Counts()[4])

	// low memory accumulators only count
	_, err := acc.WriteTables(&fakeFile{}, discard)
	assert.Error(t, err)
}

func (f *fakeFile) Append(b []byte) (uint32, error) {
	off := len(f.buf)
	f.buf = append(f.buf, b...)
	return uint32(off), nil
}

func TestAccumulator_CollisionOrder(t *testing.T) {
	// every entry lands in bucket 0x11 and starts probing at slot 1 of 6
	acc := NewAccumulator(FastHighMem)
	for i := uint32(0); i < 3; i++ {
		acc.Add(0x0111+i*0x600, HeaderSize+i*100)
	}
	f := &fakeFile{buf: make([]byte, HeaderSize)}
	h, err := acc.WriteTables(f, discard)
	require.NoError(t, err)
	require.Equal(t, Entry{Offset: HeaderSize, Slots: 6}, h[0x11])

	slots := ondisk.Slots(f.buf[HeaderSize:])
	for i := uint32(0); i < 3; i++ {
		_, off := slots.At(1 + i)
		assert.Equal(t, HeaderSize+i*100, off)
	}
}

func TestBuildInPlace_MatchesAccumulator(t *testing.T) {
	for _, n := range []int{0, 1, 5, 300, 5000} {
		pairs := numberedPairs(n)
		// duplicates and empty keys must land identically as well
		pairs = append(pairs, testPair{"key1", "again"}, testPair{"", "empty"})
		expected, _, recordsEnd := buildFile(t, pairs)

		acc := NewAccumulator(SlowLowMem)
		f := &fakeFile{}
		w, err := datafile.NewWriter(f)
		require.NoError(t, err)
		for _, p := range pairs {
			off, err := w.Write([]byte(p.key), []byte(p.value))
			require.NoError(t, err)
			acc.Add(hash.Sum([]byte(p.key)), off)
		}
		require.NoError(t, w.Finish())
		require.Equal(t, recordsEnd, w.Offset())

		h, end, err := Layout(acc.Counts(), w.Offset())
		require.NoError(t, err)
		require.Equal(t, int64(len(expected)), end)
		require.Equal(t, recordsEnd+acc.TablesSize(), end)

		m := make([]byte, end)
		copy(m, f.buf)
		require.NoError(t, BuildInPlace(m, h, recordsEnd, hash.Sum, discard))
		require.Equal(t, expected, m, "n=%d", n)
	}
}

func TestLayout_SizeLimit(t *testing.T) {
	var counts [hash.NumBuckets]uint32
	counts[9] = 1

	h, end, err := Layout(&counts, datafile.MaxFileSize-2*ondisk.SlotSize)
	require.NoError(t, err)
	assert.Equal(t, int64(datafile.MaxFileSize), end)
	assert.Equal(t, uint32(2), h[9].Slots)

	_, _, err = Layout(&counts, datafile.MaxFileSize-2*ondisk.SlotSize+1)
	assert.True(t, errors.Is(err, datafile.ErrSizeLimit))
}

func TestBuildInPlace_Corrupt(t *testing.T) {
	contents, h, recordsEnd := buildFile(t, numberedPairs(10))

	// pretend bucket tables extend past the end of the mapping
	var broken Header = *h
	for b := range broken {
		if broken[b].Offset != 0 {
			broken[b].Slots = 1 << 20
		}
	}
	m := append([]byte(nil), contents...)
	clear(m[recordsEnd:])
	assert.Error(t, BuildInPlace(m, &broken, recordsEnd, hash.Sum, discard))

	// and a header missing a bucket some record hashes to
	var empty Header
	m = append([]byte(nil), contents...)
	assert.Error(t, BuildInPlace(m, &empty, recordsEnd, hash.Sum, discard))
}
