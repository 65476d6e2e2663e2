// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"errors"

	"github.com/bpowers/cdb/internal/datafile"
	"github.com/bpowers/cdb/internal/mmap"
)

var (
	// ErrSizeLimit is returned when a Put or Build would grow the file
	// past 2^31-1 bytes.
	ErrSizeLimit = datafile.ErrSizeLimit
	// ErrCorrupt is returned when a record or hash table lies outside the
	// region of the file it must occupy.
	ErrCorrupt = datafile.ErrCorrupt
	// ErrNotRegularFile is returned by Open for directories, devices and
	// the like.
	ErrNotRegularFile = mmap.ErrNotRegularFile

	ErrClosed       = errors.New("cdb: builder already closed")
	ErrDuplicateKey = errors.New("cdb: duplicate key")
)
