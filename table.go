// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/hash"
	"github.com/bpowers/cdb/internal/index"
	"github.com/bpowers/cdb/internal/mmap"
	"github.com/bpowers/cdb/internal/ondisk"
	"github.com/bpowers/cdb/internal/unsafestring"
)

// TableOption configures a Table.
type TableOption func(*tableOptions)

type tableOptions struct {
	logger    *slog.Logger
	hash      HashFunc
	lockIndex bool
}

// WithTableLogger sets an optional logger.  If not provided, no logging
// output will be produced.
func WithTableLogger(logger *slog.Logger) TableOption {
	return func(opts *tableOptions) {
		opts.logger = logger
	}
}

// WithTableHashFunc sets the key hash, which must match the one the file
// was built with (Hash by default).
func WithTableHashFunc(hf HashFunc) TableOption {
	return func(opts *tableOptions) {
		opts.hash = hf
	}
}

// WithLockedIndex mlocks the header and hash tables into RAM, so that
// only record reads can page fault.  Failing to lock is logged and
// otherwise ignored.
func WithLockedIndex() TableOption {
	return func(opts *tableOptions) {
		opts.lockIndex = true
	}
}

// Table is a read-only view of a cdb file.  It is safe for concurrent
// use by multiple goroutines.
//
// Keys and values returned by a Table point directly into a read-only
// mapping of the file: writing to them faults, and they must not be used
// after Close.
type Table struct {
	mm      *mmap.Mapping
	data    []byte
	header  index.Header
	records *datafile.Reader
	hash    HashFunc
	logger  *slog.Logger
}

// Open maps the file at path read-only.
func Open(path string, opts ...TableOption) (*Table, error) {
	var options tableOptions
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	options.hash = hash.Default
	for _, opt := range opts {
		opt(&options)
	}
	if options.hash == nil {
		return nil, errors.New("WithTableHashFunc: nil hash function")
	}

	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap.Open(%s): %w", path, err)
	}
	data := m.Data()
	if len(data) < index.HeaderSize {
		_ = m.Close()
		return nil, fmt.Errorf("%s: file too short (%d < %d): %w", path, len(data), index.HeaderSize, ErrCorrupt)
	}
	// lookups jump around the file; readahead is wasted work
	if err := m.Advise(unix.MADV_RANDOM); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("madvise: %w", err)
	}

	t := &Table{
		mm:     m,
		data:   data,
		hash:   options.hash,
		logger: options.logger,
	}
	if err := t.header.UnmarshalBytes(data); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("header.UnmarshalBytes: %w", err)
	}
	tablesStart := t.header.TablesStart(int64(len(data)))
	t.records = datafile.NewReader(data, tablesStart)

	if options.lockIndex {
		t.lockIndex(tablesStart)
	}

	return t, nil
}

func (t *Table) lockIndex(tablesStart int64) {
	t.logger.Info("mlocking the index into memory", "bytes", index.HeaderSize+int64(len(t.data))-tablesStart)
	if err := t.mm.Lock(0, index.HeaderSize); err != nil {
		t.logger.Warn("failed to mlock the header, continuing anyway", "err", err)
		return
	}
	if err := t.mm.Lock(int(tablesStart), len(t.data)-int(tablesStart)); err != nil {
		t.logger.Warn("failed to mlock the hash tables, continuing anyway", "err", err)
	}
}

// Close unmaps the file.  It is safe to call more than once.
func (t *Table) Close() error {
	return t.mm.Close()
}

// probe tracks a lookup's position along one bucket's probe chain.
type probe struct {
	slots  ondisk.Slots
	h      uint32
	slot   uint32
	probes uint32
}

func (t *Table) bucketTable(e index.Entry) (ondisk.Slots, error) {
	end := int64(e.Offset) + int64(e.Slots)*ondisk.SlotSize
	if e.Slots == 0 || int64(e.Offset) < t.records.End() || end > int64(len(t.data)) {
		return nil, fmt.Errorf("table [%d, %d) beyond bounds (%d): %w", e.Offset, end, len(t.data), ErrCorrupt)
	}
	return ondisk.Slots(t.data[e.Offset:end]), nil
}

func (t *Table) startProbe(key []byte) (probe, error) {
	h := t.hash(key)
	e := t.header[hash.Bucket(h)]
	if e.Offset == 0 {
		return probe{}, nil
	}
	slots, err := t.bucketTable(e)
	if err != nil {
		return probe{}, err
	}
	return probe{
		slots: slots,
		h:     h,
		slot:  hash.Slot(h, slots.Len()),
	}, nil
}

// next returns the value of the next record along p's chain whose key
// is key.  A chain ends at the first empty slot, or after visiting every
// slot in the table.
func (t *Table) next(p *probe, key []byte) ([]byte, bool, error) {
	n := p.slots.Len()
	for p.probes < n {
		h, off := p.slots.At(p.slot)
		p.probes++
		p.slot++
		if p.slot == n {
			p.slot = 0
		}
		if off == 0 {
			p.probes = n
			return nil, false, nil
		}
		if h != p.h {
			continue
		}
		k, v, err := t.records.ReadAt(off)
		if err != nil {
			return nil, false, err
		}
		if bytes.Equal(k, key) {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Lookup returns the value first stored under key.  Unlike Get, it
// reports a malformed file as an error wrapping ErrCorrupt.
func (t *Table) Lookup(key []byte) ([]byte, bool, error) {
	p, err := t.startProbe(key)
	if err != nil {
		return nil, false, err
	}
	return t.next(&p, key)
}

// Get returns the value first stored under key.
func (t *Table) Get(key []byte) ([]byte, bool) {
	v, ok, err := t.Lookup(key)
	if err != nil {
		return nil, false
	}
	return v, ok
}

// GetString is Get for string keys, without copying the key.
func (t *Table) GetString(key string) ([]byte, bool) {
	return t.Get(unsafestring.ToBytes(key))
}

// GetAll returns every value stored under key, in the order they were
// put.
func (t *Table) GetAll(key []byte) [][]byte {
	p, err := t.startProbe(key)
	if err != nil {
		return nil
	}
	var values [][]byte
	for {
		v, ok, err := t.next(&p, key)
		if err != nil || !ok {
			return values
		}
		values = append(values, v)
	}
}

// tables calls fn with each populated bucket's table, skipping tables
// that lie outside the file.
func (t *Table) tables(fn func(slots ondisk.Slots)) {
	for _, e := range t.header {
		if e.Offset == 0 {
			continue
		}
		slots, err := t.bucketTable(e)
		if err != nil {
			continue
		}
		fn(slots)
	}
}

// Len returns the number of records in the file, counting each record
// of a repeated key.  It reads every hash table slot.
func (t *Table) Len() int {
	n := 0
	t.tables(func(slots ondisk.Slots) {
		n += slots.Count()
	})
	return n
}

// Iter returns an iterator over every record, in the order they were
// put.
func (t *Table) Iter() *Iter {
	return &Iter{it: t.records.Iter()}
}

// All returns a range-over-func iterator over every record.  Iteration
// stops early at a malformed record; use Iter to observe the error.
func (t *Table) All() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		it := t.records.Iter()
		for item, ok := it.Next(); ok; item, ok = it.Next() {
			if !yield(item.Key, item.Value) {
				return
			}
		}
	}
}

// Record is a key/value pair read from a Table.  Both slices are
// read-only views into the file.
type Record struct {
	Key   []byte
	Value []byte
}

// Iter walks a Table's records.  It is single-pass, and not safe for
// concurrent use.
type Iter struct {
	it *datafile.Iter
}

// Next returns the next record, or false when there are no more records
// or a malformed record was found (see Err).
func (i *Iter) Next() (Record, bool) {
	item, ok := i.it.Next()
	if !ok {
		return Record{}, false
	}
	return Record{Key: item.Key, Value: item.Value}, true
}

// Err returns the error, if any, that stopped iteration early.
func (i *Iter) Err() error {
	return i.it.Err()
}

// Stats describes the layout of a file.
type Stats struct {
	Records     int
	Buckets     int
	Slots       int64
	MaxProbe    int
	RecordsSize int64
	FileSize    int64
}

// Stats walks every hash table.  MaxProbe is the largest number of
// slots any stored record's lookup visits.
func (t *Table) Stats() Stats {
	s := Stats{
		RecordsSize: t.records.End() - datafile.FileHeaderSize,
		FileSize:    int64(len(t.data)),
	}
	t.tables(func(slots ondisk.Slots) {
		n := slots.Len()
		s.Buckets++
		s.Slots += int64(n)
		for i := uint32(0); i < n; i++ {
			h, off := slots.At(i)
			if off == 0 {
				continue
			}
			s.Records++
			start := hash.Slot(h, n)
			dist := int((i+n-start)%n) + 1
			s.MaxProbe = max(s.MaxProbe, dist)
		}
	})
	return s
}
