// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package hash implements the key hash used by cdb files, along with
// the functions that derive a key's bucket and starting table slot.
package hash

const (
	// NumBuckets is the number of hash tables in every file; a key's
	// bucket is the low 8 bits of its hash.
	NumBuckets = 256

	seed = 5381
)

// Func hashes a key.  Builders and readers of the same file must agree
// on the Func used.
type Func func(key []byte) uint32

// Default is the hash function used when none is configured.
var Default Func = Sum

// Sum returns the DJB hash of key, treating each byte as an unsigned
// value in 0-255.
func Sum(key []byte) uint32 {
	h := uint32(seed)
	for _, c := range key {
		h = ((h << 5) + h) ^ uint32(c)
	}
	return h
}

// SumSignExtended returns the DJB hash of key, sign-extending each byte
// before it is mixed in.  It matches Sum for keys made only of bytes
// below 0x80, and differs for any key containing a byte >= 0x80.
func SumSignExtended(key []byte) uint32 {
	h := uint32(seed)
	for _, c := range key {
		h = ((h << 5) + h) ^ uint32(int32(int8(c)))
	}
	return h
}

// Bucket returns which of the NumBuckets tables h belongs to.
func Bucket(h uint32) uint32 {
	return h & (NumBuckets - 1)
}

// Slot returns the slot a probe for h starts at in a table of size
// slots.  size must be non-zero.
func Slot(h, size uint32) uint32 {
	return (h / NumBuckets) % size
}
