// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrCorrupt is returned when a record or table would extend outside the
// region of the file it must live in.
var ErrCorrupt = errors.New("file corrupted")

// Reader reads records out of the records region of a file: the bytes
// between the file header and the first hash table.
type Reader struct {
	data []byte
	end  int64
}

// NewReader returns a Reader over data, whose records region ends at end.
// end is clamped to the length of data.
func NewReader(data []byte, end int64) *Reader {
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return &Reader{
		data: data,
		end:  end,
	}
}

// End returns the offset the records region ends at.
func (r *Reader) End() int64 {
	return r.end
}

func readRecordHeader(header []byte) (keyLen, valueLen int64) {
	_ = header[RecordHeaderSize-1]
	keyLen = int64(binary.LittleEndian.Uint32(header[0:4]))
	valueLen = int64(binary.LittleEndian.Uint32(header[4:8]))
	return
}

// ReadAt returns the key and value of the record at off.  Both are
// slices of the underlying data (no copies are made), capped so that
// appending to them can't clobber neighboring bytes.  They MUST NOT be
// written to.
func (r *Reader) ReadAt(off uint32) (key, value []byte, err error) {
	start := int64(off)
	// an offset inside the file header is never valid.  Empty hash table
	// slots hold an offset of 0, so callers see this when probing
	// finds nothing.
	if start < FileHeaderSize {
		return nil, nil, fmt.Errorf("off %d inside file header: %w", off, ErrCorrupt)
	}
	if start+RecordHeaderSize > r.end {
		return nil, nil, fmt.Errorf("off %d beyond bounds (%d): %w", off, r.end, ErrCorrupt)
	}

	m := r.data
	keyLen, valueLen := readRecordHeader(m[start : start+RecordHeaderSize])
	keyStart := start + RecordHeaderSize
	valueStart := keyStart + keyLen
	valueEnd := valueStart + valueLen
	if valueEnd > r.end {
		return nil, nil, fmt.Errorf("off %d + keyLen %d + valueLen %d beyond bounds (%d): %w", off, keyLen, valueLen, r.end, ErrCorrupt)
	}

	key = m[keyStart:valueStart:valueStart]
	value = m[valueStart:valueEnd:valueEnd]
	return key, value, nil
}

// Iter returns a forward-only iterator over every record, in the order
// they were written.
func (r *Reader) Iter() *Iter {
	return &Iter{r: r, off: FileHeaderSize}
}

type IterItem struct {
	Key    []byte
	Value  []byte
	Offset uint32
}

// Iter walks the records region.  It is single-pass and not safe for
// concurrent use; create one Iter per goroutine.
type Iter struct {
	r   *Reader
	off int64
	err error
}

// Next returns the next record.  It returns false at the end of the
// records region, or if a record is malformed, in which case Err returns
// non-nil.
func (i *Iter) Next() (IterItem, bool) {
	if i.err != nil || i.off >= i.r.end {
		return IterItem{}, false
	}

	k, v, err := i.r.ReadAt(uint32(i.off))
	if err != nil {
		i.err = err
		return IterItem{}, false
	}

	item := IterItem{
		Key:    k,
		Value:  v,
		Offset: uint32(i.off),
	}

	i.off += RecordHeaderSize + int64(len(k)) + int64(len(v))

	return item, true
}

// Err returns the error, if any, that stopped iteration early.
func (i *Iter) Err() error {
	return i.err
}
