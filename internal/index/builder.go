// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package index builds the per-bucket open-addressed hash tables at the
// end of a cdb file, and the header that locates them.
package index

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/hash"
	"github.com/bpowers/cdb/internal/ondisk"
)

// slotsPerRecord is the ratio of table slots to records: every bucket's
// table is twice as large as the number of records in it.
const slotsPerRecord = 2

type BuildType int

const (
	// FastHighMem keeps the hash and offset of every record (8 bytes
	// each) in memory until the tables are written.
	FastHighMem BuildType = iota
	// SlowLowMem keeps only per-bucket counts, and fills in the tables
	// by re-reading every key from the finished records region.
	SlowLowMem
)

func (bt BuildType) String() string {
	switch bt {
	case FastHighMem:
		return "FastHighMem"
	case SlowLowMem:
		return "SlowLowMem"
	default:
		return fmt.Sprintf("BuildType(%d)", int(bt))
	}
}

var ErrUnknownBuildType = errors.New("unknown buildType argument")

// Valid returns ErrUnknownBuildType for build types we don't implement.
func (bt BuildType) Valid() error {
	switch bt {
	case FastHighMem, SlowLowMem:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownBuildType, int(bt))
	}
}

type entry struct {
	hash uint32
	off  uint32
}

// Accumulator collects the records hashed to each bucket while a file's
// records are written.
type Accumulator struct {
	buildType BuildType
	counts    [hash.NumBuckets]uint32
	buckets   [hash.NumBuckets][]entry
	count     int64
}

func NewAccumulator(buildType BuildType) *Accumulator {
	return &Accumulator{buildType: buildType}
}

// Add records that the record at off has hash h.
func (a *Accumulator) Add(h, off uint32) {
	b := hash.Bucket(h)
	a.counts[b]++
	a.count++
	if a.buildType == FastHighMem {
		a.buckets[b] = append(a.buckets[b], entry{hash: h, off: off})
	}
}

// Len returns the number of records added.
func (a *Accumulator) Len() int64 {
	return a.count
}

// Counts returns the number of records in each bucket.
func (a *Accumulator) Counts() *[hash.NumBuckets]uint32 {
	return &a.counts
}

// TablesSize returns the number of bytes the hash tables will occupy.
func (a *Accumulator) TablesSize() int64 {
	return a.count * slotsPerRecord * ondisk.SlotSize
}

// TableAppender is usually a *datafile.Writer.
type TableAppender interface {
	Append(b []byte) (off uint32, err error)
}

// WriteTables builds each bucket's table in memory and appends it to w, in
// bucket order.  Each bucket's entries are released as soon as its table
// has been written.  It is only valid for FastHighMem accumulators.
func (a *Accumulator) WriteTables(w TableAppender, logger *slog.Logger) (*Header, error) {
	if a.buildType != FastHighMem {
		return nil, fmt.Errorf("WriteTables: unsupported for %s", a.buildType)
	}

	var maxCount uint32
	for _, n := range a.counts {
		maxCount = max(maxCount, n)
	}
	// one buffer, big enough for the largest table, reused for every bucket
	buf := ondisk.NewSlots(maxCount * slotsPerRecord)

	var h Header
	for b := range a.buckets {
		entries := a.buckets[b]
		if len(entries) == 0 {
			h[b] = Entry{}
			continue
		}

		slots := buf[:len(entries)*slotsPerRecord*ondisk.SlotSize]
		clear(slots)
		for _, e := range entries {
			if _, err := slots.Insert(e.hash, e.off); err != nil {
				return nil, fmt.Errorf("bucket %d: %w", b, err)
			}
		}

		off, err := w.Append(slots)
		if err != nil {
			return nil, fmt.Errorf("bucket %d: w.Append: %w", b, err)
		}
		h[b] = Entry{Offset: off, Slots: slots.Len()}
		a.buckets[b] = nil
	}

	logger.Debug("wrote hash tables", "records", a.count, "buckets", h.Populated())
	return &h, nil
}

// Layout returns the header for tables laid out contiguously in bucket
// order starting at start, along with the offset just past the last
// table.  It returns datafile.ErrSizeLimit if the tables don't fit.
func Layout(counts *[hash.NumBuckets]uint32, start int64) (*Header, int64, error) {
	var h Header
	off := start
	for b, n := range counts {
		if n == 0 {
			continue
		}
		slots := int64(n) * slotsPerRecord
		if off+slots*ondisk.SlotSize > datafile.MaxFileSize {
			return nil, 0, fmt.Errorf("bucket %d table at offset %d: %w", b, off, datafile.ErrSizeLimit)
		}
		h[b] = Entry{Offset: uint32(off), Slots: uint32(slots)}
		off += slots * ondisk.SlotSize
	}
	return &h, off, nil
}

// BuildInPlace fills in the (zeroed) hash tables described by h inside m,
// a writable mapping of the whole file, by walking every record in
// [datafile.FileHeaderSize, recordsEnd).  It also writes h to the start
// of m.
func BuildInPlace(m []byte, h *Header, recordsEnd int64, hf hash.Func, logger *slog.Logger) error {
	r := datafile.NewReader(m, recordsEnd)
	it := r.Iter()
	n := 0
	for item, ok := it.Next(); ok; item, ok = it.Next() {
		kh := hf(item.Key)
		b := hash.Bucket(kh)
		e := h[b]
		if e.Offset == 0 {
			return fmt.Errorf("invariant broken: record at %d hashed to empty bucket %d", item.Offset, b)
		}
		end := int64(e.Offset) + int64(e.Slots)*ondisk.SlotSize
		if end > int64(len(m)) {
			return fmt.Errorf("bucket %d table [%d, %d) beyond bounds (%d)", b, e.Offset, end, len(m))
		}
		slots := ondisk.Slots(m[e.Offset:end])
		if _, err := slots.Insert(kh, item.Offset); err != nil {
			return fmt.Errorf("bucket %d: %w", b, err)
		}
		n++
		if n%1000000 == 0 {
			logger.Debug("indexed records", "records", n)
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("it.Next: %w", err)
	}

	return h.MarshalTo(m)
}
