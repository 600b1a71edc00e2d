// Package memfs is an in-memory hostfs.FS binding used by tests so that
// session-manager behavior can be exercised without touching a real
// filesystem or network. Modeled on the teacher's in-memory content
// store: a map guarded by a single mutex, full-featured enough to stand
// in for the real bindings in every test.
package memfs

import (
	"io"
	"os"
	"sync"

	"github.com/sessionfs/sessionfs/internal/hostfs"
)

// FS is an in-memory hostfs.FS binding.
type FS struct {
	mu    sync.RWMutex
	files map[string]*buffer
}

// New returns an empty in-memory filesystem.
func New() *FS {
	return &FS{files: make(map[string]*buffer)}
}

type buffer struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// Open opens or creates the named in-memory file.
func (f *FS) Open(path string, flags hostfs.Flag, _ uint32) (hostfs.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.files[path]
	if !ok {
		if flags&hostfs.CREATE == 0 {
			return nil, hostfs.ErrNotExist
		}
		b = &buffer{}
		f.files[path] = b
	} else if flags&hostfs.CREATE != 0 && flags&hostfs.EXCL != 0 {
		return nil, os.ErrExist
	}
	b.mu.Lock()
	b.closed = false
	b.mu.Unlock()
	return &handle{buf: b}, nil
}

// Closed reports whether any handle on path has been closed since the
// most recent Open of path. Used by tests to assert that a binding's
// Close actually released the underlying handle.
func (f *FS) Closed(path string) bool {
	f.mu.RLock()
	b, ok := f.files[path]
	f.mu.RUnlock()
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Contents returns a copy of the named file's current bytes, for test
// assertions. The second return value is false if the file was never
// created.
func (f *FS) Contents(path string) ([]byte, bool) {
	f.mu.RLock()
	b, ok := f.files[path]
	f.mu.RUnlock()
	if !ok {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, true
}

// Exists reports whether path has ever been created.
func (f *FS) Exists(path string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.files[path]
	return ok
}

type handle struct {
	buf    *buffer
	closed bool
}

func (h *handle) ReadAt(p []byte, off int64) (int, error) {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	if off >= int64(len(h.buf.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.buf.data[off:])
	if off+int64(n) >= int64(len(h.buf.data)) && n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (h *handle) WriteAt(p []byte, off int64) (int, error) {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(h.buf.data)) {
		grown := make([]byte, end)
		copy(grown, h.buf.data)
		h.buf.data = grown
	}
	copy(h.buf.data[off:end], p)
	return len(p), nil
}

func (h *handle) Truncate(size int64) error {
	h.buf.mu.Lock()
	defer h.buf.mu.Unlock()
	if int64(len(h.buf.data)) == size {
		return nil
	}
	if size < int64(len(h.buf.data)) {
		h.buf.data = h.buf.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, h.buf.data)
	h.buf.data = grown
	return nil
}

func (h *handle) Sync() error { return nil }

func (h *handle) Close() error {
	h.closed = true
	h.buf.mu.Lock()
	h.buf.closed = true
	h.buf.mu.Unlock()
	return nil
}
