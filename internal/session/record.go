package session

import (
	"sync"
	"sync/atomic"

	"github.com/sessionfs/sessionfs/internal/hostfs"
)

// Incarnation is one process's private copy-on-open view of an
// original file (spec §3). Once published into its session's
// collection, every field except Status is immutable; Status is set
// once, at publish time, and never changes afterward.
type Incarnation struct {
	OwnerPID int
	Fd       int
	File     hostfs.File
	Pathname string

	// Status carries the copy-on-open result: 0 means valid, a negative
	// value means copy-on-open failed and the incarnation must be
	// treated as corrupt (I5) — its eventual close skips write-back.
	Status int32

	next atomic.Pointer[Incarnation]
}

// Corrupt reports whether copy-on-open failed for this incarnation.
func (inc *Incarnation) Corrupt() bool {
	return inc.Status < 0
}

// incarnationList is a lock-free singly-linked stack of incarnations,
// the Go rendering of the kernel's llist: push is safe under concurrent
// callers holding only the session's *read* lock (spec §4.3), matching
// llist_add's lock-free multi-producer guarantee. removeByKey and
// replace require the caller to hold the session's *write* lock, which by
// sync.RWMutex's exclusivity guarantees no push is concurrently in
// flight, so they may walk and rewrite next pointers without further
// synchronization.
type incarnationList struct {
	head atomic.Pointer[Incarnation]
}

// push prepends inc to the list using a CAS loop, safe for any number
// of concurrent callers.
func (l *incarnationList) push(inc *Incarnation) {
	for {
		old := l.head.Load()
		inc.next.Store(old)
		if l.head.CompareAndSwap(old, inc) {
			return
		}
	}
}

// removeByKey unlinks and returns the incarnation matching (pid, fd).
// Must be called with the owning session's write lock held.
func (l *incarnationList) removeByKey(pid, fd int) *Incarnation {
	var prev *Incarnation
	cur := l.head.Load()
	for cur != nil {
		next := cur.next.Load()
		if cur.OwnerPID == pid && cur.Fd == fd {
			if prev == nil {
				l.head.Store(next)
			} else {
				prev.next.Store(next)
			}
			cur.next.Store(nil)
			return cur
		}
		prev = cur
		cur = next
	}
	return nil
}

// snapshot returns every incarnation currently in the list, in
// traversal order. Safe for callers holding either lock side, since it
// only performs atomic loads.
func (l *incarnationList) snapshot() []*Incarnation {
	var out []*Incarnation
	for cur := l.head.Load(); cur != nil; cur = cur.next.Load() {
		out = append(out, cur)
	}
	return out
}

// empty reports whether the list currently has no incarnations.
func (l *incarnationList) empty() bool {
	return l.head.Load() == nil
}

// replace atomically swaps the entire list contents for incs, relinking
// them into a fresh chain. Must be called with the owning session's
// write lock held (used by Sweep to reinstall survivors).
func (l *incarnationList) replace(incs []*Incarnation) {
	var head *Incarnation
	for i := len(incs) - 1; i >= 0; i-- {
		incs[i].next.Store(head)
		head = incs[i]
	}
	l.head.Store(head)
}

// Session is the per-original-pathname aggregation of live incarnations
// plus the open handle on the original (spec §3).
type Session struct {
	pathname string
	original hostfs.File

	// lock is the session lock of spec §4.3: its read side guards
	// observation and creation of incarnations, its write side guards
	// destruction of an incarnation and any write-back over the
	// original.
	lock sync.RWMutex

	incarnations incarnationList

	refcount int32      // atomic, via sync/atomic functions
	valid    atomic.Bool

	node *node // the registry list node this session is published under
}

func newSession(pathname string, original hostfs.File) *Session {
	s := &Session{pathname: pathname, original: original}
	s.refcount = 1
	s.valid.Store(true)
	return s
}

func (s *Session) addRef() {
	atomic.AddInt32(&s.refcount, 1)
}

// dropRef decrements the refcount and reports the new value.
func (s *Session) dropRef() int32 {
	return atomic.AddInt32(&s.refcount, -1)
}

func (s *Session) refs() int32 {
	return atomic.LoadInt32(&s.refcount)
}

// Pathname returns the session's original pathname.
func (s *Session) Pathname() string { return s.pathname }

// IncarnationCount returns the number of live incarnations, taking the
// session read lock.
func (s *Session) IncarnationCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.incarnations.snapshot())
}

// Incarnations returns a snapshot of the live incarnations, taking the
// session read lock.
func (s *Session) Incarnations() []*Incarnation {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.incarnations.snapshot()
}
