// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package mmap maps whole files into memory.
//
// It is modeled on golang.org/x/exp/mmap, but exposes the mapped bytes
// directly and supports read-write mappings for building files in place.
package mmap

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ErrNotRegularFile is returned by Open for directories, devices, pipes
// and other paths that aren't regular files.
var ErrNotRegularFile = errors.New("not a regular file")

// Mapping is a region of a file mapped into memory.
type Mapping struct {
	data     []byte
	writable bool
	closed   atomic.Bool
}

// Open memory-maps the regular file at path read-only.  Writes through
// Data() fault.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	return Map(f, fi.Size(), false)
}

// Map maps the first size bytes of f.  The mapping stays valid after f is
// closed.  Writable mappings are shared, so stores are visible in the file.
func Map(f *os.File, size int64, writable bool) (*Mapping, error) {
	if size < 0 {
		return nil, fmt.Errorf("mmap: file %q has negative size", f.Name())
	}
	if size != int64(int(size)) {
		return nil, fmt.Errorf("mmap: file %q is too large", f.Name())
	}

	m := &Mapping{writable: writable}
	if size == 0 {
		// mmap(2) rejects zero-length mappings
		return m, nil
	}

	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("unix.Mmap: %w", err)
	}
	m.data = data
	runtime.SetFinalizer(m, (*Mapping).Close)
	return m, nil
}

// Data returns the mapped bytes.  The slice must not be used after Close.
func (m *Mapping) Data() []byte {
	return m.data
}

// Len returns the length of the mapping.
func (m *Mapping) Len() int {
	return len(m.data)
}

// Advise passes an madvise(2) hint (e.g. unix.MADV_RANDOM) for the whole
// mapping.
func (m *Mapping) Advise(advice int) error {
	if len(m.data) == 0 {
		return nil
	}
	return unix.Madvise(m.data, advice)
}

// Lock pins the byte range [off, off+n) of the mapping into RAM.
func (m *Mapping) Lock(off, n int) error {
	if off < 0 || n < 0 || off+n > len(m.data) {
		return fmt.Errorf("mlock range [%d, %d) outside mapping of length %d", off, off+n, len(m.data))
	}
	if n == 0 {
		return nil
	}
	return unix.Mlock(m.data[off : off+n])
}

// Sync flushes stores made through a writable mapping back to the file.
func (m *Mapping) Sync() error {
	if !m.writable || len(m.data) == 0 {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Close unmaps the region.  It is safe to call Close more than once.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	runtime.SetFinalizer(m, nil)
	data := m.data
	m.data = nil
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}
