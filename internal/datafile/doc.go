// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package datafile reads and writes the records region of a cdb file.
//
// A cdb file looks like:
//
//	┌───────────────────┐
//	│ file header       │  256 x {table offset, slot count}
//	├───────────────────┤
//	│ repeated KV pairs │
//	│                   │
//	│                   │
//	│                   │
//	├───────────────────┤
//	│ hash tables       │  one per non-empty bucket
//	│                   │
//	└───────────────────┘
//
// Individual KV pairs start with a fixed 8-byte header and are variable length,
// and look like:
//
//	 0    1    2    3    4    5    6    7
//	+----+----+----+----+----+----+----+----+
//	| key length        | value length      |
//	+----+----+----+----+----+----+----+----+
//	| key...       | value...               |
//	+----+----+----+----+----+----+----+----+
//	| value...                              |
//	+----+----+----+----+----+----+----+----+
//
// All integers are little-endian.  Every offset in the file must fit in a
// signed 32-bit integer, which limits files to just under 2GB.
package datafile
