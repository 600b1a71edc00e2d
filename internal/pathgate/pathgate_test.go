package pathgate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRoot_RejectsRelativePath(t *testing.T) {
	g := New()
	err := g.SetRoot("relative/path")
	assert.ErrorIs(t, err, ErrInvalidRoot)
	assert.Equal(t, DefaultRoot, g.GetRoot(), "a rejected SetRoot must not mutate the root")
}

func TestIsUnderRoot_ResolvesRealAncestry(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "child.txt")
	require.NoError(t, os.WriteFile(sub, []byte("x"), 0644))

	g := New()
	require.NoError(t, g.SetRoot(dir))

	m, err := g.IsUnderRoot(sub)
	require.NoError(t, err)
	assert.Equal(t, Under, m)
}

func TestIsUnderRoot_RejectsOutsidePath(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	outside := filepath.Join(dirB, "x.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))

	g := New()
	require.NoError(t, g.SetRoot(dirA))

	m, err := g.IsUnderRoot(outside)
	require.NoError(t, err)
	assert.Equal(t, Outside, m)
}

func TestIsUnderRoot_FallsBackForNonexistentPath(t *testing.T) {
	dir := t.TempDir()
	g := New()
	require.NoError(t, g.SetRoot(dir))

	notYetCreated := filepath.Join(dir, "new_incarnation_1_2")
	m, err := g.IsUnderRoot(notYetCreated)
	require.NoError(t, err)
	assert.Equal(t, Under, m, "a not-yet-created path beneath root must still be classified Under via the substring fallback")
}
