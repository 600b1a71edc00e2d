package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// node is the registry's intrusive list link, the Go analog of the
// kernel's RCU-protected list_head. Unlink only ever redirects a
// predecessor's next pointer past the removed node — it never mutates
// the removed node's own next pointer — so that a reader already
// mid-traversal through it still observes a consistent (if slightly
// stale) continuation of the list, exactly as list_del_rcu behaves.
type node struct {
	session *Session
	next    atomic.Pointer[node]
}

// Registry is the set of all live session records (spec §4.4):
// lock-free for readers, serialized for structural mutation by a single
// "registry spinlock", with deferred reclamation of unlinked link nodes
// once a quiescent period has elapsed.
type Registry struct {
	mu      sync.Mutex // the "registry spinlock"
	head    atomic.Pointer[node]
	readers atomic.Int64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) enterRead() { r.readers.Add(1) }
func (r *Registry) exitRead()  { r.readers.Add(-1) }

// Find traverses the registry as an RCU-style reader looking for a
// valid session keyed by pathname. On a hit, the caller receives a
// session reference that must be dropped with DropRef. For each
// candidate the refcount is incremented first and only then is validity
// and the pathname checked, exactly as spec §4.4 requires; on a miss
// the refcount is decremented before moving to the next candidate.
func (r *Registry) Find(pathname string) *Session {
	r.enterRead()
	defer r.exitRead()

	for n := r.head.Load(); n != nil; n = n.next.Load() {
		s := n.session
		s.addRef()
		if s.valid.Load() && s.pathname == pathname {
			return s
		}
		s.dropRef()
	}
	return nil
}

// FindByFd locates the session for pathname and, while holding that
// session's read lock, scans its incarnation collection for (pid, fd).
// On a miss at either level the caller's reference is dropped and both
// return values are nil.
func (r *Registry) FindByFd(pathname string, pid, fd int) (*Session, *Incarnation) {
	s := r.Find(pathname)
	if s == nil {
		return nil, nil
	}

	s.lock.RLock()
	var found *Incarnation
	for _, inc := range s.incarnations.snapshot() {
		if inc.OwnerPID == pid && inc.Fd == fd {
			found = inc
			break
		}
	}
	s.lock.RUnlock()

	if found == nil {
		s.dropRef()
		return nil, nil
	}
	return s, found
}

// DropRef releases a reference obtained from Find/FindByFd.
func (r *Registry) DropRef(s *Session) {
	s.dropRef()
}

// Lock acquires the registry spinlock. Insert and Unlink require it to
// already be held.
func (r *Registry) Lock()   { r.mu.Lock() }
func (r *Registry) Unlock() { r.mu.Unlock() }

// Insert links s into the registry. Must be called with the registry
// spinlock held, after a Find(pathname) miss (double-checked under the
// same lock).
func (r *Registry) Insert(s *Session) {
	n := &node{session: s}
	n.next.Store(r.head.Load())
	s.node = n
	r.head.Store(n)
}

// Unlink removes s's node from the registry. Must be called with both
// the registry spinlock and s's write lock held. Reclamation of the
// link structure itself (not the Session object) is deferred until a
// quiescent period has elapsed.
func (r *Registry) Unlink(s *Session) {
	var prev *node
	cur := r.head.Load()
	for cur != nil {
		next := cur.next.Load()
		if cur.session == s {
			if prev == nil {
				r.head.Store(next)
			} else {
				prev.next.Store(next)
			}
			r.scheduleReclaim(cur)
			return
		}
		prev = cur
		cur = next
	}
}

// scheduleReclaim waits, in the background, for a quiescent period (no
// reader critical section active) before severing n's own next pointer
// and its session reference, satisfying I4/P2: by the time readers
// drops to zero, every reader that could have been traversing through n
// has completed its traversal.
func (r *Registry) scheduleReclaim(n *node) {
	go func() {
		for r.readers.Load() != 0 {
			time.Sleep(time.Microsecond)
		}
		n.next.Store(nil)
		n.session = nil
	}()
}

// Walk invokes fn for every session currently in the registry,
// RCU-style: the traversal itself never blocks on reclamation. fn must
// not block on the registry spinlock.
func (r *Registry) Walk(fn func(*Session)) {
	r.enterRead()
	defer r.exitRead()

	for n := r.head.Load(); n != nil; n = n.next.Load() {
		fn(n.session)
	}
}
