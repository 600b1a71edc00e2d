package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionfs/sessionfs/internal/hostfs"
	"github.com/sessionfs/sessionfs/internal/hostfs/memfs"
	"github.com/sessionfs/sessionfs/internal/pathgate"
	"github.com/sessionfs/sessionfs/internal/procprobe"
)

const root = "/mnt"

func newTestManager(t *testing.T) (*Manager, *memfs.FS, *procprobe.Scripted) {
	t.Helper()
	fs := memfs.New()
	gate := pathgate.New()
	require.NoError(t, gate.SetRoot(root))
	probe := procprobe.NewScripted()
	reg := NewRegistry()
	return NewManager(reg, gate, fs, probe), fs, probe
}

func seedFile(t *testing.T, fs *memfs.FS, path string, contents []byte) {
	t.Helper()
	f, err := fs.Open(path, hostfs.RDWR|hostfs.CREATE, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt(contents, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

// P1: two distinct processes opening the same path each get their own
// incarnation, and each incarnation starts as a faithful copy of the
// original's content.
func TestCreate_CopyOnOpenIsolatesIncarnations(t *testing.T) {
	mgr, fs, _ := newTestManager(t)
	path := root + "/doc.txt"
	seedFile(t, fs, path, []byte("hello"))

	incA, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 100, 0644)
	require.NoError(t, err)
	incB, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 200, 0644)
	require.NoError(t, err)

	assert.NotEqual(t, incA.Fd, incB.Fd)
	assert.False(t, incA.Corrupt())
	assert.False(t, incB.Corrupt())

	bufA := make([]byte, 5)
	_, err = incA.File.ReadAt(bufA, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(bufA))

	_, err = incA.File.WriteAt([]byte("WORLD"), 0)
	require.NoError(t, err)

	bufB := make([]byte, 5)
	_, err = incB.File.ReadAt(bufB, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(bufB), "incarnation B must not observe incarnation A's private write")
}

// P2/R1: last-closer-wins write-back — every close propagates its
// incarnation back to the original, so the final close's content wins.
func TestClose_LastCloserWinsWriteBack(t *testing.T) {
	mgr, fs, _ := newTestManager(t)
	path := root + "/doc.txt"
	seedFile(t, fs, path, []byte("aaaaa"))

	incA, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 100, 0644)
	require.NoError(t, err)
	incB, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 200, 0644)
	require.NoError(t, err)

	_, err = incA.File.WriteAt([]byte("AAAAA"), 0)
	require.NoError(t, err)
	_, err = incB.File.WriteAt([]byte("BBBBB"), 0)
	require.NoError(t, err)

	require.NoError(t, mgr.Close(path, incA.Fd, 100))

	contents, ok := fs.Contents(path)
	require.True(t, ok)
	assert.Equal(t, "AAAAA", string(contents), "each close of a valid incarnation must write back")

	require.NoError(t, mgr.Close(path, incB.Fd, 200))

	contents, ok = fs.Contents(path)
	require.True(t, ok)
	assert.Equal(t, "BBBBB", string(contents), "final close must write back")
}

// P3: closing an unknown (path, pid, fd) triple reports ErrBadFd.
func TestClose_UnknownFdIsBadFd(t *testing.T) {
	mgr, fs, _ := newTestManager(t)
	path := root + "/doc.txt"
	seedFile(t, fs, path, []byte("x"))

	err := mgr.Close(path, 77, 1)
	assert.ErrorIs(t, err, ErrBadFd)
}

// P4: a corrupt incarnation (copy-on-open failed) is never written back
// on close.
func TestClose_CorruptIncarnationSkipsWriteBack(t *testing.T) {
	mgr, fs, _ := newTestManager(t)
	path := root + "/doc.txt"
	seedFile(t, fs, path, []byte("original"))

	inc, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 100, 0644)
	require.NoError(t, err)

	inc.Status = -1
	_, err = inc.File.WriteAt([]byte("corrupted"), 0)
	require.NoError(t, err)

	require.NoError(t, mgr.Close(path, inc.Fd, 100))

	contents, ok := fs.Contents(path)
	require.True(t, ok)
	assert.Equal(t, "original", string(contents))
}

// P5: a path outside the session root is rejected with ErrInvalid.
func TestCreate_RejectsPathOutsideRoot(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	_, err := mgr.Create("/etc/passwd", hostfs.RDONLY|hostfs.SessionOpt, 1, 0644)
	assert.ErrorIs(t, err, ErrInvalid)
}

// P6: Close reports ErrOwnerGone when the owning process had already
// died, while still tearing the incarnation down.
func TestClose_ReportsOwnerGone(t *testing.T) {
	mgr, fs, probe := newTestManager(t)
	path := root + "/doc.txt"
	seedFile(t, fs, path, []byte("x"))

	inc, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 500, 0644)
	require.NoError(t, err)

	probe.Kill(500)

	err = mgr.Close(path, inc.Fd, 500)
	assert.ErrorIs(t, err, ErrOwnerGone)
}

// R2: closing every incarnation of a session retires it from the
// registry, so a subsequent open creates a fresh session rather than
// reusing the torn-down one.
func TestClose_RetiresEmptySession(t *testing.T) {
	mgr, fs, _ := newTestManager(t)
	path := root + "/doc.txt"
	seedFile(t, fs, path, []byte("v1"))

	inc, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 100, 0644)
	require.NoError(t, err)
	require.NoError(t, mgr.Close(path, inc.Fd, 100))

	assert.Nil(t, mgr.registry.Find(path), "session must be unlinked once its last incarnation closes")

	inc2, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 200, 0644)
	require.NoError(t, err)
	assert.NotNil(t, inc2)
}

// Sweep reaps incarnations of dead processes and returns the number of
// incarnations still considered live.
func TestSweep_ReapsDeadOwners(t *testing.T) {
	mgr, fs, probe := newTestManager(t)
	path := root + "/doc.txt"
	seedFile(t, fs, path, []byte("v1"))

	incAlive, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 1, 0644)
	require.NoError(t, err)
	incDead, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 2, 0644)
	require.NoError(t, err)

	probe.Kill(2)

	active := mgr.Sweep()
	assert.Equal(t, 1, active)

	sess := mgr.registry.Find(path)
	require.NotNil(t, sess)
	defer mgr.registry.DropRef(sess)

	incs := sess.Incarnations()
	require.Len(t, incs, 1)
	assert.Equal(t, incAlive.Fd, incs[0].Fd)
	_ = incDead
}

// Sweep retires a session once every incarnation it held has been
// reaped, and a fresh open afterward succeeds rather than hitting a
// torn-down session.
func TestSweep_RetiresSessionWhenAllOwnersDead(t *testing.T) {
	mgr, fs, probe := newTestManager(t)
	path := root + "/doc.txt"
	seedFile(t, fs, path, []byte("v1"))

	inc, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 9, 0644)
	require.NoError(t, err)
	probe.Kill(9)

	active := mgr.Sweep()
	assert.Equal(t, 0, active)
	assert.Nil(t, mgr.registry.Find(path))
	assert.True(t, fs.Closed(path), "retired session must close its original handle")

	_ = inc
	inc2, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 10, 0644)
	require.NoError(t, err)
	assert.NotNil(t, inc2)
}

// Shutdown only succeeds once no incarnations remain live.
func TestShutdown_RefusesWhileIncarnationsLive(t *testing.T) {
	mgr, fs, _ := newTestManager(t)
	path := root + "/doc.txt"
	seedFile(t, fs, path, []byte("v1"))

	inc, err := mgr.Create(path, hostfs.RDWR|hostfs.SessionOpt, 1, 0644)
	require.NoError(t, err)

	sd := NewShutdown(mgr)
	err = sd.Shutdown()
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, sd.Active(), "a refused shutdown must re-enable entry")

	require.NoError(t, mgr.Close(path, inc.Fd, 1))

	require.NoError(t, sd.Shutdown())
	assert.False(t, sd.Active())
}

func TestShutdown_EnterRejectsAfterShutdown(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	sd := NewShutdown(mgr)
	require.NoError(t, sd.Shutdown())

	_, err := sd.Enter()
	assert.True(t, errors.Is(err, ErrShutdown))
}
