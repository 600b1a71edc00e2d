package memfs_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionfs/sessionfs/internal/hostfs"
	"github.com/sessionfs/sessionfs/internal/hostfs/memfs"
)

func TestOpen_MissingWithoutCreate(t *testing.T) {
	fs := memfs.New()
	_, err := fs.Open("/missing", hostfs.RDONLY, 0644)
	assert.ErrorIs(t, err, hostfs.ErrNotExist)
}

func TestOpen_ExclOnExistingFails(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Open("/a", hostfs.CREATE, 0644)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = fs.Open("/a", hostfs.CREATE|hostfs.EXCL, 0644)
	assert.Error(t, err)
}

func TestReadAt_ReportsEOFAtEnd(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Open("/a", hostfs.CREATE|hostfs.RDWR, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("hi"), 0)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := f.ReadAt(buf, 0)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestExists(t *testing.T) {
	fs := memfs.New()
	assert.False(t, fs.Exists("/a"))
	f, err := fs.Open("/a", hostfs.CREATE, 0644)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.True(t, fs.Exists("/a"))
}
