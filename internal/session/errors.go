package session

import "errors"

// Sentinel errors matching the error taxonomy of spec §7. Host I/O
// errors are never replaced with these: they are returned as the host
// binding reported them, or, for a copy-on-open failure, carried in an
// Incarnation's Status as the negative errno (-1 when the error carries
// no errno).
var (
	// ErrInvalid is an argument error: the path was not absolute, not
	// under the session root, or otherwise malformed.
	ErrInvalid = errors.New("session: invalid argument")

	// ErrNoMem is a resource error: allocation failed.
	ErrNoMem = errors.New("session: out of memory")

	// ErrBadFd means no incarnation matches the given (path, fd, pid).
	ErrBadFd = errors.New("session: bad file descriptor")

	// ErrBusy is returned only by the shutdown coordinator when
	// in-flight operations or live incarnations remain.
	ErrBusy = errors.New("session: busy")

	// ErrRetry is returned by Create when the parent session went
	// invalid between lookup and the session read lock; the caller may
	// retry.
	ErrRetry = errors.New("session: stale session, retry")

	// ErrOwnerGone is reported by Close when the owning process died
	// between open and close. Close still tears the incarnation down
	// best-effort.
	ErrOwnerGone = errors.New("session: owner process gone")

	// ErrShutdown is returned by every entry point once Shutdown has
	// succeeded; the core must be re-initialized before further use.
	ErrShutdown = errors.New("session: core is shut down")
)
