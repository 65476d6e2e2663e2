// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
)

const (
	defaultBufferSize = 4 * 1024 * 1024

	// FileHeaderSize is the size of the table directory at the start of
	// every file: 256 entries of {table offset, slot count}.
	FileHeaderSize = 256 * (4 + 4)
	// RecordHeaderSize is the 32-bit key length + 32-bit value length
	// that prefixes every record.
	RecordHeaderSize = 4 + 4

	// MaxFileSize is the largest file we will write: every offset in the
	// file must fit in a signed 32-bit integer.
	MaxFileSize = math.MaxInt32
)

var (
	ErrSizeLimit = errors.New("cdb files must be smaller than 2GB")
	ErrFinished  = errors.New("writer already finished")
)

type nopWriter struct{}

func (nopWriter) Write([]byte) (int, error) {
	return 0, io.EOF
}

// FileWriter is usually an *os.File, but specified as an interface for easier testing.
type FileWriter interface {
	io.Writer
	io.WriterAt
}

// Writer appends length-prefixed records to a file, after reserving
// space for the file header.
type Writer struct {
	f        FileWriter
	w        *bufio.Writer
	off      int64
	count    int64
	finished atomic.Bool
}

func NewWriter(f FileWriter) (*Writer, error) {
	w := &Writer{
		f: f,
		w: bufio.NewWriterSize(f, defaultBufferSize),
	}

	// reserve space for the header, which is filled in once the hash
	// tables have been written.
	var header [FileHeaderSize]byte
	if _, err := w.w.Write(header[:]); err != nil {
		return nil, fmt.Errorf("bufio.Write: %w", err)
	}
	// try to expose errors when writing to the backing file early
	if err := w.w.Flush(); err != nil {
		return nil, fmt.Errorf("bufio.Flush: %w", err)
	}
	w.off = FileHeaderSize

	return w, nil
}

// CheckSize returns ErrSizeLimit if growing the file by n bytes would
// make it larger than MaxFileSize.
func (w *Writer) CheckSize(n int64) error {
	if n < 0 || w.off+n > MaxFileSize {
		return fmt.Errorf("appending %d bytes at offset %d: %w", n, w.off, ErrSizeLimit)
	}
	return nil
}

// Write appends a record, returning the offset it starts at.  Nothing is
// written if the record would push the file past MaxFileSize.
func (w *Writer) Write(key, value []byte) (off uint32, err error) {
	if w.finished.Load() {
		return 0, ErrFinished
	}
	if w.off < FileHeaderSize {
		return 0, errors.New("invariant broken: always expect *Writer.off to be past the file header")
	}
	if err := w.CheckSize(RecordHeaderSize + int64(len(key)) + int64(len(value))); err != nil {
		return 0, err
	}

	var header [RecordHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(key)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(value)))

	if _, err := w.w.Write(header[:]); err != nil {
		return 0, fmt.Errorf("bufio.Write 1: %w", err)
	}
	if _, err := w.w.Write(key); err != nil {
		return 0, fmt.Errorf("bufio.Write 2: %w", err)
	}
	if _, err := w.w.Write(value); err != nil {
		return 0, fmt.Errorf("bufio.Write 3: %w", err)
	}

	off = uint32(w.off)
	w.off += RecordHeaderSize + int64(len(key)) + int64(len(value))
	w.count++

	return off, nil
}

// Append writes raw bytes (a hash table) after the records, returning
// the offset they start at.
func (w *Writer) Append(b []byte) (off uint32, err error) {
	if w.finished.Load() {
		return 0, ErrFinished
	}
	if err := w.CheckSize(int64(len(b))); err != nil {
		return 0, err
	}
	if _, err := w.w.Write(b); err != nil {
		return 0, fmt.Errorf("bufio.Write: %w", err)
	}
	off = uint32(w.off)
	w.off += int64(len(b))
	return off, nil
}

// Flush pushes buffered writes to the underlying file.
func (w *Writer) Flush() error {
	if w.finished.Load() {
		return nil
	}
	return w.w.Flush()
}

// Offset returns the offset the next write will start at, which is also
// the number of bytes written so far.
func (w *Writer) Offset() int64 {
	return w.off
}

// Count returns the number of records written.
func (w *Writer) Count() int64 {
	return w.count
}

// Finish flushes any buffered data.  Subsequent writes fail; subsequent
// calls to Finish do nothing.
func (w *Writer) Finish() error {
	if alreadyFinished := w.finished.Swap(true); alreadyFinished {
		// nothing to do - already cleaned up
		return nil
	}

	defer func() {
		w.w.Reset(nopWriter{})
	}()

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}
	return nil
}
