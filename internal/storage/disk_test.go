package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskSaveAndRemove(t *testing.T) {
	d, err := NewDisk(filepath.Join(t.TempDir(), "uploads"), 16)
	require.NoError(t, err)

	name, n, err := d.Save(strings.NewReader("hello"), ".PNG")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.True(t, strings.HasSuffix(name, ".png"))

	b, err := os.ReadFile(filepath.Join(d.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	require.NoError(t, d.Remove(name))
	_, err = os.Stat(filepath.Join(d.Dir(), name))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, d.Remove(name), "removing twice is fine")
}

func TestDiskSaveTooLarge(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 4)
	require.NoError(t, err)

	_, _, err = d.Save(bytes.NewReader([]byte("12345")), ".jpg")
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(d.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "partial file must be removed")
}

func TestDiskRemoveRejectsPaths(t *testing.T) {
	d, err := NewDisk(t.TempDir(), 4)
	require.NoError(t, err)
	assert.Error(t, d.Remove("../etc/passwd"))
	assert.Error(t, d.Remove(""))
}
