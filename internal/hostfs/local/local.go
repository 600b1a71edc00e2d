// Package local is the production hostfs.FS binding backed by the native
// operating system file APIs.
package local

import (
	"os"

	"github.com/sessionfs/sessionfs/internal/hostfs"
)

// FS opens files directly on the local filesystem.
type FS struct{}

// New returns a local-disk hostfs.FS binding.
func New() *FS { return &FS{} }

func toOSFlags(flags hostfs.Flag) int {
	var f int
	switch flags & 0x3 {
	case hostfs.WRONLY:
		f |= os.O_WRONLY
	case hostfs.RDWR:
		f |= os.O_RDWR
	default:
		f |= os.O_RDONLY
	}
	if flags&hostfs.CREATE != 0 {
		f |= os.O_CREATE
	}
	if flags&hostfs.EXCL != 0 {
		f |= os.O_EXCL
	}
	return f
}

// Open opens path with the native os package, translating hostfs flags.
func (f *FS) Open(path string, flags hostfs.Flag, mode uint32) (hostfs.File, error) {
	osFile, err := os.OpenFile(path, toOSFlags(flags), os.FileMode(mode))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hostfs.ErrNotExist
		}
		return nil, err
	}
	return &file{f: osFile}, nil
}

type file struct {
	f *os.File
}

func (h *file) ReadAt(p []byte, off int64) (int, error)  { return h.f.ReadAt(p, off) }
func (h *file) WriteAt(p []byte, off int64) (int, error) { return h.f.WriteAt(p, off) }
func (h *file) Close() error                             { return h.f.Close() }
func (h *file) Truncate(size int64) error                { return h.f.Truncate(size) }
func (h *file) Sync() error                              { return h.f.Sync() }

// FD exposes the underlying OS file descriptor number, used only for
// diagnostics; the session manager allocates the caller-visible fd
// itself rather than trusting a host binding's descriptor table.
func (h *file) FD() uintptr { return h.f.Fd() }
