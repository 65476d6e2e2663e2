// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgryski/go-farm"

	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/hash"
	"github.com/bpowers/cdb/internal/index"
	"github.com/bpowers/cdb/internal/mmap"
)

// HashFunc hashes keys.  A file must be read with the HashFunc it was
// built with.
type HashFunc = hash.Func

// Hash is the default HashFunc: DJB's hash over unsigned bytes.
func Hash(key []byte) uint32 {
	return hash.Sum(key)
}

// HashSignExtended is DJB's hash with each byte sign-extended before it
// is mixed in.  It differs from Hash only for keys containing bytes
// >= 0x80.
func HashSignExtended(key []byte) uint32 {
	return hash.SumSignExtended(key)
}

// BuildType picks how the hash tables are built when a Builder finishes.
type BuildType = index.BuildType

const (
	// FastHighMem holds 8 bytes per record in memory until Build.
	FastHighMem = index.FastHighMem
	// SlowLowMem holds only per-bucket counts, and builds the tables
	// inside a writable mapping of the finished file.
	SlowLowMem = index.SlowLowMem
)

// BuilderOption configures the Builder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	logger           *slog.Logger
	hash             HashFunc
	buildType        BuildType
	rejectDuplicates bool
}

// WithBuilderLogger sets an optional logger for the builder to use for progress updates.
// If not provided, no logging output will be produced.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(opts *builderOptions) {
		opts.logger = logger
	}
}

// WithHashFunc overrides the key hash (Hash by default).
func WithHashFunc(hf HashFunc) BuilderOption {
	return func(opts *builderOptions) {
		opts.hash = hf
	}
}

// WithBuildType picks the table building strategy (FastHighMem by
// default).  Both strategies produce identical files.
func WithBuildType(buildType BuildType) BuilderOption {
	return func(opts *builderOptions) {
		opts.buildType = buildType
	}
}

// WithRejectDuplicates makes Put return ErrDuplicateKey for a key that
// was already put, rather than storing a second record for it.
func WithRejectDuplicates() BuilderOption {
	return func(opts *builderOptions) {
		opts.rejectDuplicates = true
	}
}

// Builder is used to construct a constant database from key/value pairs.
// It is not safe for concurrent use.
type Builder struct {
	resultPath string
	dataFile   *os.File
	dioWriter  *datafile.Writer
	acc        *index.Accumulator
	hash       HashFunc
	buildType  BuildType
	logger     *slog.Logger

	// seen maps key fingerprints to the offsets of records with that
	// fingerprint.  nil unless duplicates are rejected.
	seen   map[uint64][]uint32
	keyBuf []byte

	// err is sticky: once a Put fails to write, the file is abandoned.
	err    error
	closed bool
}

// NewBuilder creates a Builder whose file will end up at dataFilePath.
// Records are written to a temporary file in the same directory, which
// replaces dataFilePath when the Builder is closed.
func NewBuilder(dataFilePath string, opts ...BuilderOption) (*Builder, error) {
	var options builderOptions
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	options.hash = hash.Default
	options.buildType = FastHighMem
	for _, opt := range opts {
		opt(&options)
	}
	if options.hash == nil {
		return nil, errors.New("WithHashFunc: nil hash function")
	}
	if err := options.buildType.Valid(); err != nil {
		return nil, err
	}

	// we want to write to a new file and do an atomic rename when we're done on disk
	dataFilePath, err := filepath.Abs(dataFilePath)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %w", err)
	}
	dir := filepath.Dir(dataFilePath)
	dataFile, err := os.CreateTemp(dir, "cdb-builder.*.data")
	if err != nil {
		return nil, fmt.Errorf("CreateTemp failed (may need permissions for dir %q containing dataFile): %w", dir, err)
	}
	w, err := datafile.NewWriter(dataFile)
	if err != nil {
		_ = dataFile.Close()
		_ = os.Remove(dataFile.Name())
		return nil, fmt.Errorf("datafile.NewWriter: %w", err)
	}

	b := &Builder{
		resultPath: dataFilePath,
		dataFile:   dataFile,
		dioWriter:  w,
		acc:        index.NewAccumulator(options.buildType),
		hash:       options.hash,
		buildType:  options.buildType,
		logger:     options.logger,
	}
	if options.rejectDuplicates {
		b.seen = make(map[uint64][]uint32)
	}
	return b, nil
}

// Put adds a key/value pair to the table.  Keys may repeat: Get returns
// the value put first, and GetAll returns every value in the order they
// were put.
func (b *Builder) Put(k, v []byte) error {
	if b.closed {
		return ErrClosed
	}
	if b.err != nil {
		return b.err
	}

	var fp uint64
	if b.seen != nil {
		fp = farm.Fingerprint64(k)
		if dup, err := b.isDuplicate(fp, k); err != nil {
			b.err = err
			return err
		} else if dup {
			return fmt.Errorf("%q: %w", k, ErrDuplicateKey)
		}
	}

	off, err := b.dioWriter.Write(k, v)
	if err != nil {
		b.err = fmt.Errorf("datafile.Write: %w", err)
		return b.err
	}
	b.acc.Add(b.hash(k), off)
	if b.seen != nil {
		b.seen[fp] = append(b.seen[fp], off)
	}
	return nil
}

// isDuplicate reports whether k was already put.  Fingerprint matches are
// confirmed by reading the earlier record's key back from the file.
func (b *Builder) isDuplicate(fp uint64, k []byte) (bool, error) {
	offs := b.seen[fp]
	if len(offs) == 0 {
		return false, nil
	}
	if err := b.dioWriter.Flush(); err != nil {
		return false, fmt.Errorf("datafile.Flush: %w", err)
	}
	for _, off := range offs {
		var header [datafile.RecordHeaderSize]byte
		if _, err := b.dataFile.ReadAt(header[:], int64(off)); err != nil {
			return false, fmt.Errorf("f.ReadAt(%d): %w", off, err)
		}
		if int(binary.LittleEndian.Uint32(header[0:4])) != len(k) {
			continue
		}
		if cap(b.keyBuf) < len(k) {
			b.keyBuf = make([]byte, len(k))
		}
		key := b.keyBuf[:len(k)]
		if _, err := b.dataFile.ReadAt(key, int64(off)+datafile.RecordHeaderSize); err != nil {
			return false, fmt.Errorf("f.ReadAt(%d): %w", off, err)
		}
		if bytes.Equal(key, k) {
			return true, nil
		}
	}
	return false, nil
}

// Build writes the hash tables and header, and moves the finished file
// into place, returning its path.  Calling Build (or Close) again returns
// the same result without doing anything.
func (b *Builder) Build() (string, error) {
	if err := b.finalize(); err != nil {
		return "", err
	}
	return b.resultPath, nil
}

// Close is Build without the path.
func (b *Builder) Close() error {
	return b.finalize()
}

// Discard abandons the file being built, leaving whatever is at the
// destination path untouched.  Later calls to Build return an error.
func (b *Builder) Discard() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.err == nil {
		b.err = fmt.Errorf("discarded: %w", ErrClosed)
	}
	_ = b.dioWriter.Finish()
	err := b.dataFile.Close()
	if rmErr := os.Remove(b.dataFile.Name()); err == nil {
		err = rmErr
	}
	b.dataFile = nil
	return err
}

func (b *Builder) finalize() error {
	if b.closed {
		return b.err
	}
	b.closed = true

	if b.err == nil {
		b.err = b.writeIndex()
	}
	if b.err != nil {
		// the temporary file is useless; whatever was at resultPath is untouched
		_ = b.dataFile.Close()
		_ = os.Remove(b.dataFile.Name())
		b.dataFile = nil
		return b.err
	}
	return nil
}

func (b *Builder) writeIndex() error {
	if err := b.dioWriter.Flush(); err != nil {
		return fmt.Errorf("datafile.Flush: %w", err)
	}
	recordsEnd := b.dioWriter.Offset()
	// fail before truncating or mapping anything
	if err := b.dioWriter.CheckSize(b.acc.TablesSize()); err != nil {
		return err
	}
	b.seen = nil

	var h *index.Header
	var size int64
	var err error
	switch b.buildType {
	case FastHighMem:
		h, size, err = b.appendTables()
	case SlowLowMem:
		h, size, err = b.buildTablesInPlace(recordsEnd)
	default:
		err = b.buildType.Valid()
	}
	if err != nil {
		return err
	}

	f := b.dataFile
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("f.Truncate(%d): %w", size, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("f.Close: %w", err)
	}
	// make the file read-only
	if err := os.Chmod(f.Name(), 0444); err != nil {
		return fmt.Errorf("os.Chmod(0444): %w", err)
	}
	if err := os.Rename(f.Name(), b.resultPath); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	b.dataFile = nil

	b.logger.Info("built cdb",
		"path", b.resultPath,
		"records", b.acc.Len(),
		"buckets", h.Populated(),
		"size", size,
		"buildType", b.buildType.String())
	return nil
}

// appendTables writes every bucket's table after the records, then fills
// in the header.
func (b *Builder) appendTables() (*index.Header, int64, error) {
	h, err := b.acc.WriteTables(b.dioWriter, b.logger)
	if err != nil {
		return nil, 0, fmt.Errorf("index.WriteTables: %w", err)
	}
	if err := b.dioWriter.Finish(); err != nil {
		return nil, 0, fmt.Errorf("datafile.Finish: %w", err)
	}
	if err := h.Update(b.dataFile); err != nil {
		return nil, 0, fmt.Errorf("header.Update: %w", err)
	}
	return h, b.dioWriter.Offset(), nil
}

// buildTablesInPlace grows the file to its final size, maps it
// read-write, and inserts every record into its table by walking the
// records region.
func (b *Builder) buildTablesInPlace(recordsEnd int64) (*index.Header, int64, error) {
	if err := b.dioWriter.Finish(); err != nil {
		return nil, 0, fmt.Errorf("datafile.Finish: %w", err)
	}
	h, size, err := index.Layout(b.acc.Counts(), recordsEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("index.Layout: %w", err)
	}
	if err := b.dataFile.Truncate(size); err != nil {
		return nil, 0, fmt.Errorf("f.Truncate(%d): %w", size, err)
	}

	m, err := mmap.Map(b.dataFile, size, true)
	if err != nil {
		return nil, 0, fmt.Errorf("mmap.Map: %w", err)
	}
	defer func() {
		_ = m.Close()
	}()

	b.logger.Debug("building tables in place", "records", b.acc.Len(), "size", size)
	if err := index.BuildInPlace(m.Data(), h, recordsEnd, b.hash, b.logger); err != nil {
		return nil, 0, fmt.Errorf("index.BuildInPlace: %w", err)
	}
	if err := m.Sync(); err != nil {
		return nil, 0, fmt.Errorf("msync: %w", err)
	}
	if err := m.Close(); err != nil {
		return nil, 0, fmt.Errorf("munmap: %w", err)
	}
	return h, size, nil
}
