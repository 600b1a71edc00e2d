// Package hostfs abstracts the host-filesystem primitives the session
// manager opens and copies through: a scoped file handle and a
// bulk_copy(src, dst) operation that streams one file's entire content
// into another from offset 0. Production code binds to a local disk
// (internal/hostfs/local) or to an S3 bucket (internal/hostfs/s3); tests
// bind to an in-memory fake (internal/hostfs/memfs).
package hostfs

import (
	"errors"
	"io"
)

// Flag mirrors the subset of os.O_* flags the session manager cares
// about, plus a session opt-in bit the control channel uses to signal
// that an OPEN request wants session semantics. The core strips
// SessionOpt before forwarding flags to a host binding.
type Flag int

const (
	RDONLY Flag = Flag(0)
	WRONLY Flag = Flag(1)
	RDWR   Flag = Flag(2)
	CREATE Flag = Flag(1 << 6)
	EXCL   Flag = Flag(1 << 7)

	// SessionOpt is the bit an OPEN control message sets to request
	// session semantics. It is never forwarded to a host binding.
	SessionOpt Flag = Flag(1 << 20)
)

// accessMask isolates the RDONLY/WRONLY/RDWR intent bits.
const accessMask = Flag(0x3)

// StripSessionOpt clears SessionOpt, returning flags safe to forward to
// a host open call.
func StripSessionOpt(flags Flag) Flag {
	return flags &^ SessionOpt
}

// ForceReadWrite replaces the access-intent bits with RDWR, used when
// opening an original file: the session manager always needs to read
// the original for copy-on-open and write it for copy-on-close,
// regardless of what the caller asked for.
func ForceReadWrite(flags Flag) Flag {
	return (flags &^ accessMask) | RDWR
}

// File is a single open handle on a host file. BulkCopy reads and writes
// through ReaderAt/WriterAt so that copying never disturbs any other
// cursor a binding might expose.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	// Truncate resizes the file to exactly size bytes, used after a bulk
	// copy to make sure the destination does not retain stale trailing
	// bytes from whatever it held before.
	Truncate(size int64) error
	// Sync flushes any buffered content to the backing store.
	Sync() error
}

// FS opens and creates files on a host binding.
type FS interface {
	// Open opens the named file with the given flags and permission
	// mode, creating it first if CREATE is set. SessionOpt must already
	// be stripped by the caller.
	Open(path string, flags Flag, mode uint32) (File, error)
}

// ErrNotExist is returned by a binding's Open when the file does not
// exist and CREATE was not set.
var ErrNotExist = errors.New("hostfs: file does not exist")

// slabSize is the scratch-buffer size BulkCopy reads and writes in. 512
// bytes mirrors the original kernel module's copy_file loop; it is not
// performance-critical since copy-on-open/close already dominates on
// file-system latency.
const slabSize = 512

// BulkCopy streams the entire content of src into dst, both starting at
// offset 0, in fixed-size slabs. It reads until EOF and aborts on the
// first read or write error. It must never be called concurrently with
// another BulkCopy targeting the same dst.
func BulkCopy(dst, src File) (int64, error) {
	buf := make([]byte, slabSize)
	var off int64
	for {
		n, rerr := src.ReadAt(buf, off)
		if n > 0 {
			if _, werr := dst.WriteAt(buf[:n], off); werr != nil {
				return off, werr
			}
			off += int64(n)
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return off, rerr
		}
	}
	if err := dst.Truncate(off); err != nil {
		return off, err
	}
	return off, nil
}
