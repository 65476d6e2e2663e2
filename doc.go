// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cdb builds and reads constant databases: immutable files of
// key/value records with an on-disk hash index, looked up through a
// read-only memory mapping.
//
// A file is written once with a Builder and then opened any number of
// times with Open:
//
//	b, err := cdb.NewBuilder("names.cdb")
//	...
//	_ = b.Put([]byte("susan"), []byte("victoria"))
//	path, err := b.Build()
//	...
//	t, err := cdb.Open(path)
//	v, ok := t.GetString("susan")
//
// The layout is the classic cdb one: a 2048 byte header of 256
// {table offset, slot count} pairs, the records, then one open-addressed
// hash table per non-empty bucket.  Every integer is little-endian, and
// files are limited to 2^31-1 bytes.
//
// Keys are hashed with DJB's hash over unsigned bytes (Hash), which is
// what cdb and cdbmake use.  Some implementations of the format
// sign-extend bytes >= 0x80 before mixing them in; files written by them
// can be read, and written, with HashSignExtended via WithTableHashFunc
// and WithHashFunc.  The two agree on keys made of bytes below 0x80.
package cdb
