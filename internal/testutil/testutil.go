// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package testutil generates random key/value data for tests.
package testutil

import (
	"crypto/rand"

	fuzz "github.com/google/gofuzz"
)

// KV is a single key/value pair.
type KV struct {
	Key   string
	Value string
}

// Generator produces reproducible random keys and values.
type Generator struct {
	f *fuzz.Fuzzer
}

// NewGenerator returns a Generator whose output depends only on seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{f: fuzz.NewWithSeed(seed).NilChance(0)}
}

// RandomKV returns size pairs with distinct, non-empty keys, in the order
// they were generated.
func (g *Generator) RandomKV(size int) []KV {
	seen := make(map[string]struct{}, size)
	kvs := make([]KV, 0, size)
	for len(kvs) < size {
		var key, value string

		g.f.Fuzz(&key)
		g.f.Fuzz(&value)

		if key == "" {
			continue
		}
		if _, exist := seen[key]; exist {
			continue
		}

		seen[key] = struct{}{}
		kvs = append(kvs, KV{Key: key, Value: value})
	}

	return kvs
}

// RandomKV returns size pairs from a Generator seeded with seed.
func RandomKV(seed int64, size int) []KV {
	return NewGenerator(seed).RandomKV(size)
}

// RandomByteArray returns size bytes from crypto/rand.
func RandomByteArray(size int) []byte {
	arr := make([]byte, size)
	_, _ = rand.Read(arr)
	return arr
}
