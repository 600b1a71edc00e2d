// Package session implements the session manager core: incarnation and
// session records, the concurrent registry, the lifecycle engine
// (create/close/sweep), and the shutdown coordinator (spec §3–§5).
package session

import (
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sessionfs/sessionfs/internal/hostfs"
	"github.com/sessionfs/sessionfs/internal/logger"
	"github.com/sessionfs/sessionfs/internal/pathgate"
	"github.com/sessionfs/sessionfs/internal/procprobe"
)

// pathMax bounds the constructed incarnation pathname; past this length
// the /var/tmp/<pid>_<ts> fallback from spec §3 is used instead.
const pathMax = 4096

// varTmpFallback is the directory used when the preferred incarnation
// pathname would overflow pathMax.
const varTmpFallback = "/var/tmp"

// Manager is the lifecycle engine of spec §4.5: Create, Close, and
// Sweep, operating against a Registry, a hostfs.FS binding, and a
// procprobe.Probe.
type Manager struct {
	registry *Registry
	gate     *pathgate.Gate
	fs       hostfs.FS
	probe    procprobe.Probe

	fdCounter atomic.Int32 // shared by every owner pid
}

// NewManager builds a lifecycle engine over the given registry, path
// gate, host binding, and process probe.
func NewManager(reg *Registry, gate *pathgate.Gate, fs hostfs.FS, probe procprobe.Probe) *Manager {
	return &Manager{registry: reg, gate: gate, fs: fs, probe: probe}
}

// nextFd allocates an incarnation fd from a single counter, so fds are
// unique per owning process and also distinct across owners.
func (m *Manager) nextFd() int {
	// Descriptors 0-2 are conventionally stdio; incarnation fds start at 3.
	return int(m.fdCounter.Add(1)) + 2
}

// Create implements spec §4.5's create(path, flags, pid, mode) →
// incarnation. flags must already have the session opt-in bit present;
// it is stripped before any host open.
func (m *Manager) Create(path string, flags hostfs.Flag, pid int, mode uint32) (*Incarnation, error) {
	under, err := m.gate.IsUnderRoot(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if under != pathgate.Under {
		return nil, ErrInvalid
	}

	hostFlags := hostfs.StripSessionOpt(flags)

	sess, err := m.lookupOrCreateSession(path, hostFlags, mode)
	if err != nil {
		return nil, err
	}

	inc, err := m.createIncarnation(sess, hostFlags, pid, mode)
	if err != nil {
		m.registry.DropRef(sess)
		return nil, err
	}

	m.registry.DropRef(sess)
	return inc, nil
}

// lookupOrCreateSession implements spec §4.5 step 1: find-or-create,
// with the double-checked registry-locked insert path.
func (m *Manager) lookupOrCreateSession(path string, hostFlags hostfs.Flag, mode uint32) (*Session, error) {
	if sess := m.registry.Find(path); sess != nil {
		if sess.valid.Load() {
			return sess, nil
		}
		// Invalid session observed: drop our reference and fall
		// through to the miss path: a concurrent close is tearing
		// this session down, so we race to install a fresh one.
		m.registry.DropRef(sess)
	}

	m.registry.Lock()
	defer m.registry.Unlock()

	if sess := m.registry.Find(path); sess != nil {
		if sess.valid.Load() {
			return sess, nil
		}
		m.registry.DropRef(sess)
	}

	original, err := m.fs.Open(path, hostfs.ForceReadWrite(hostFlags), mode)
	if err != nil {
		return nil, err
	}

	sess := newSession(path, original)
	m.registry.Insert(sess)
	logger.InfoF(logger.Fields{"path": path}, "session opened")
	return sess, nil
}

// createIncarnation implements spec §4.5 steps 2-5.
func (m *Manager) createIncarnation(sess *Session, hostFlags hostfs.Flag, pid int, mode uint32) (*Incarnation, error) {
	incPath := incarnationPathname(sess.pathname, pid)

	sess.lock.RLock()
	if !sess.valid.Load() {
		sess.lock.RUnlock()
		return nil, ErrRetry
	}

	incFile, err := m.fs.Open(incPath, hostFlags|hostfs.CREATE, mode)
	if err != nil {
		sess.lock.RUnlock()
		return nil, err
	}

	var status int32
	if _, copyErr := hostfs.BulkCopy(incFile, sess.original); copyErr != nil {
		status = -1
		var errno syscall.Errno
		if errors.As(copyErr, &errno) {
			status = -int32(errno)
		}
		logger.ErrorF(logger.Fields{"path": incPath}, "copy-on-open failed: %v", copyErr)
	}

	inc := &Incarnation{
		OwnerPID: pid,
		Fd:       m.nextFd(),
		File:     incFile,
		Pathname: incPath,
		Status:   status,
	}
	sess.incarnations.push(inc)
	sess.lock.RUnlock()

	return inc, nil
}

// incarnationPathname builds the unique incarnation pathname of spec
// §3: "<original>_incarnation_<pid>_<nanos>", falling back to
// "/var/tmp/<pid>_<nanos>" if that would overflow pathMax. <nanos> is
// the wall-clock time.Now().UnixNano() reading, not a monotonic clock.
func incarnationPathname(original string, pid int) string {
	ts := time.Now().UnixNano()
	p := fmt.Sprintf("%s_incarnation_%d_%d", original, pid, ts)
	if len(p) <= pathMax {
		return p
	}
	return fmt.Sprintf("%s/%d_%d", varTmpFallback, pid, ts)
}

// Close implements spec §4.5's close(path, fd, pid). FindByFd leaves the
// caller holding one session reference, which this function always
// drops exactly once before returning.
func (m *Manager) Close(path string, fd, pid int) error {
	sess, inc := m.registry.FindByFd(path, pid, fd)
	if sess == nil {
		return ErrBadFd
	}

	sess.lock.Lock()

	var writeBackErr error
	if sess.valid.Load() && !inc.Corrupt() {
		if _, err := hostfs.BulkCopy(sess.original, inc.File); err != nil {
			writeBackErr = err
			logger.ErrorF(logger.Fields{"path": path, "pid": pid, "fd": fd}, "write-back failed: %v", err)
		}
	}

	sess.incarnations.removeByKey(pid, fd)
	_ = inc.File.Close()

	ownerGone := m.probe.Check(pid).Dead()

	// refs() == 1 here means our own FindByFd reference is the last one:
	// no other opener is mid-lookup against this session.
	if sess.incarnations.empty() && sess.refs() == 1 && sess.valid.Load() {
		sess.valid.Store(false)
		m.registry.Lock()
		m.registry.Unlink(sess)
		m.registry.Unlock()
		logger.InfoF(logger.Fields{"path": path}, "session closed")
	}

	sess.lock.Unlock()

	if sess.dropRef() == 0 && !sess.valid.Load() {
		m.reclaimSession(sess)
	}

	if writeBackErr != nil {
		return writeBackErr
	}
	if ownerGone {
		return ErrOwnerGone
	}
	return nil
}

// reclaimSession closes the original file handle and releases the
// session object once its refcount has drained to zero and it has been
// unlinked from the registry (I3, I4).
func (m *Manager) reclaimSession(sess *Session) {
	_ = sess.original.Close()
}

// Sweep implements spec §4.5's sweep() → active_count: reap
// incarnations whose owning process has died, report liveness for the
// shutdown coordinator.
func (m *Manager) Sweep() int {
	var toInvalidate []*Session
	active := 0

	m.registry.Walk(func(sess *Session) {
		sess.addRef()

		sess.lock.Lock()
		incs := sess.incarnations.snapshot()
		survivors := incs[:0:0]
		for _, inc := range incs {
			if m.probe.Check(inc.OwnerPID).Dead() {
				_ = inc.File.Close()
				logger.WarnF(logger.Fields{"path": sess.pathname, "pid": inc.OwnerPID, "fd": inc.Fd},
					"sweep reaped incarnation of dead process")
				continue
			}
			survivors = append(survivors, inc)
		}
		sess.incarnations.replace(survivors)
		active += len(survivors)
		sess.lock.Unlock()

		if len(survivors) == 0 {
			// Hold this ref across the invalidation pass below instead of
			// dropping it here; it is released exactly once in that pass.
			toInvalidate = append(toInvalidate, sess)
			return
		}
		m.registry.DropRef(sess)
	})

	if len(toInvalidate) > 0 {
		m.registry.Lock()
		for _, sess := range toInvalidate {
			if sess.valid.CompareAndSwap(true, false) {
				m.registry.Unlink(sess)
			}
		}
		m.registry.Unlock()
		for _, sess := range toInvalidate {
			if sess.dropRef() == 0 {
				m.reclaimSession(sess)
			}
		}
	}

	return active
}
