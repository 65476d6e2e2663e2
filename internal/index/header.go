// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package index

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/hash"
)

const (
	HeaderSize = datafile.FileHeaderSize
	entrySize  = 4 + 4
)

// Entry locates one bucket's hash table.  An Offset of 0 means no
// records hashed to the bucket.
type Entry struct {
	Offset uint32
	Slots  uint32
}

// Header is the table directory stored in the first 2048 bytes of a file:
// one Entry per bucket, in bucket order.
type Header [hash.NumBuckets]Entry

func (h *Header) MarshalTo(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("buf too small: %d < %d", len(buf), HeaderSize)
	}
	for i, e := range h {
		b := buf[i*entrySize : i*entrySize+entrySize]
		binary.LittleEndian.PutUint32(b[0:4], e.Offset)
		binary.LittleEndian.PutUint32(b[4:8], e.Slots)
	}
	return nil
}

func (h *Header) UnmarshalBytes(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("file too short: %d < %d", len(buf), HeaderSize)
	}
	for i := range h {
		b := buf[i*entrySize : i*entrySize+entrySize]
		h[i] = Entry{
			Offset: binary.LittleEndian.Uint32(b[0:4]),
			Slots:  binary.LittleEndian.Uint32(b[4:8]),
		}
	}
	return nil
}

// Update overwrites the start of w with the marshaled header.
func (h *Header) Update(w io.WriterAt) error {
	var buf [HeaderSize]byte
	if err := h.MarshalTo(buf[:]); err != nil {
		return err
	}
	if _, err := w.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("f.WriteAt: %w", err)
	}
	return nil
}

// TablesStart returns where the records region ends: the lowest table
// offset, or fileLen if every bucket is empty.
func (h *Header) TablesStart(fileLen int64) int64 {
	start := fileLen
	for _, e := range h {
		if e.Offset != 0 && int64(e.Offset) < start {
			start = int64(e.Offset)
		}
	}
	return start
}

// Populated returns the number of buckets with a hash table.
func (h *Header) Populated() int {
	n := 0
	for _, e := range h {
		if e.Offset != 0 {
			n++
		}
	}
	return n
}

// TotalSlots returns the number of slots across every table.
func (h *Header) TotalSlots() int64 {
	var n int64
	for _, e := range h {
		if e.Offset != 0 {
			n += int64(e.Slots)
		}
	}
	return n
}
