// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"bytes"
	"iter"
	"sync"
)

// Map is a read-only, map-like view of a Table.
type Map struct {
	t    *Table
	size func() int
}

// NewMap wraps t.  The Map's length is computed on first use and cached.
func NewMap(t *Table) *Map {
	return &Map{
		t:    t,
		size: sync.OnceValue(t.Len),
	}
}

// Len returns the number of records, counting each record of a
// repeated key.
func (m *Map) Len() int {
	return m.size()
}

func (m *Map) Get(key []byte) ([]byte, bool) {
	return m.t.Get(key)
}

func (m *Map) Contains(key []byte) bool {
	_, ok := m.t.Get(key)
	return ok
}

// ContainsEntry reports whether value is the value first stored under key.
func (m *Map) ContainsEntry(key, value []byte) bool {
	v, ok := m.t.Get(key)
	return ok && bytes.Equal(v, value)
}

func (m *Map) All() iter.Seq2[[]byte, []byte] {
	return m.t.All()
}

func (m *Map) Keys() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for k := range m.t.All() {
			if !yield(k) {
				return
			}
		}
	}
}

func (m *Map) Values() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, v := range m.t.All() {
			if !yield(v) {
				return
			}
		}
	}
}
