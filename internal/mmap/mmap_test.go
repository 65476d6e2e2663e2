// Copyright 2026 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package mmap

import (
	"errors"
	"os"
	"path/filepath"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("hello, mmap"), 0644))

	m, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 11, m.Len())
	assert.Equal(t, "hello, mmap", string(m.Data()))
	assert.NoError(t, m.Advise(unix.MADV_RANDOM))

	require.NoError(t, m.Close())
	// multiple closes are fine
	require.NoError(t, m.Close())
	assert.Nil(t, m.Data())
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("/doesnt/exist")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = Open(t.TempDir())
	assert.True(t, errors.Is(err, ErrNotRegularFile))

	_, err = Open("/dev/null")
	assert.True(t, errors.Is(err, ErrNotRegularFile))
}

func TestOpen_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	m, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.NoError(t, m.Advise(unix.MADV_RANDOM))
	assert.NoError(t, m.Close())
}

func TestOpen_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("immutable"), 0644))

	m, err := Open(path)
	require.NoError(t, err)
	defer func() {
		_ = m.Close()
	}()

	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)

	assert.Panics(t, func() {
		m.Data()[0] = 'X'
	})
	assert.Equal(t, "immutable", string(m.Data()))
}

func TestMap_Writable(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "file"))
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	require.NoError(t, f.Truncate(16))

	m, err := Map(f, 16, true)
	require.NoError(t, err)
	copy(m.Data()[4:], "abcd")
	require.NoError(t, m.Sync())
	require.NoError(t, m.Close())

	contents, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, "\x00\x00\x00\x00abcd\x00\x00\x00\x00\x00\x00\x00\x00", string(contents))
}

func TestLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0644))

	m, err := Open(path)
	require.NoError(t, err)
	defer func() {
		_ = m.Close()
	}()

	assert.Error(t, m.Lock(60, 8))
	assert.Error(t, m.Lock(-1, 8))
	assert.NoError(t, m.Lock(0, 0))
}
