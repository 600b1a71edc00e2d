package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionfs/sessionfs/internal/hostfs"
	"github.com/sessionfs/sessionfs/internal/hostfs/memfs"
)

func TestRegistry_FindMissReturnsNil(t *testing.T) {
	reg := NewRegistry()
	assert.Nil(t, reg.Find("/mnt/nope"))
}

func TestRegistry_InsertThenFind(t *testing.T) {
	reg := NewRegistry()
	fs := memfs.New()
	f, err := fs.Open("/mnt/a", hostfs.CREATE, 0644)
	require.NoError(t, err)

	s := newSession("/mnt/a", f)
	reg.Lock()
	reg.Insert(s)
	reg.Unlock()

	found := reg.Find("/mnt/a")
	require.NotNil(t, found)
	assert.Same(t, s, found)
	assert.EqualValues(t, 2, found.refs(), "Find must add a reference on hit")
	reg.DropRef(found)
}

func TestRegistry_UnlinkRemovesFromWalk(t *testing.T) {
	reg := NewRegistry()
	fs := memfs.New()
	fa, err := fs.Open("/mnt/a", hostfs.CREATE, 0644)
	require.NoError(t, err)
	fb, err := fs.Open("/mnt/b", hostfs.CREATE, 0644)
	require.NoError(t, err)

	sa := newSession("/mnt/a", fa)
	sb := newSession("/mnt/b", fb)

	reg.Lock()
	reg.Insert(sa)
	reg.Insert(sb)
	reg.Unlock()

	sa.lock.Lock()
	sa.valid.Store(false)
	reg.Lock()
	reg.Unlink(sa)
	reg.Unlock()
	sa.lock.Unlock()

	var seen []string
	reg.Walk(func(s *Session) { seen = append(seen, s.Pathname()) })
	assert.ElementsMatch(t, []string{"/mnt/b"}, seen)
}

func TestRegistry_FindSkipsInvalidSessions(t *testing.T) {
	reg := NewRegistry()
	fs := memfs.New()
	f, err := fs.Open("/mnt/a", hostfs.CREATE, 0644)
	require.NoError(t, err)

	s := newSession("/mnt/a", f)
	s.valid.Store(false)

	reg.Lock()
	reg.Insert(s)
	reg.Unlock()

	assert.Nil(t, reg.Find("/mnt/a"), "an invalidated session must never be returned by Find")
}
