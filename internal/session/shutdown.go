package session

import (
	"sync/atomic"

	"github.com/sessionfs/sessionfs/internal/logger"
)

// Shutdown is the two-phase shutdown coordinator of spec §4.5/§5:
// every entry point registers as in-flight for its duration, and
// Shutdown only succeeds once it can observe the system at rest with
// no live incarnations left to reap.
type Shutdown struct {
	disabled atomic.Bool
	inflight atomic.Int64
	mgr      *Manager
}

// NewShutdown wires a coordinator to the lifecycle engine whose Sweep
// it calls during the shutdown attempt.
func NewShutdown(mgr *Manager) *Shutdown {
	return &Shutdown{mgr: mgr}
}

// Enter is called by every entry point (Create, Close, Sweep) before
// doing any work. It returns ErrShutdown once Shutdown has succeeded,
// otherwise it registers the call as in-flight; the caller must call
// the returned done func exactly once when finished.
func (s *Shutdown) Enter() (done func(), err error) {
	if s.disabled.Load() {
		return func() {}, ErrShutdown
	}
	s.inflight.Add(1)
	return func() { s.inflight.Add(-1) }, nil
}

// Shutdown implements spec's two-phase shutdown: phase one disables new
// entry, phase two checks once, without waiting, whether the system has
// quiesced. It only succeeds if,
// after disabling new entry, no calls are in flight and a sweep finds
// zero live incarnations; otherwise it re-enables entry and reports
// ErrBusy so the caller may retry.
func (s *Shutdown) Shutdown() error {
	if !s.disabled.CompareAndSwap(false, true) {
		return ErrBusy
	}

	if s.inflight.Load() != 0 {
		s.disabled.Store(false)
		return ErrBusy
	}

	if active := s.mgr.Sweep(); active != 0 {
		s.disabled.Store(false)
		logger.WarnF(logger.Fields{"active": active}, "shutdown aborted: incarnations still live")
		return ErrBusy
	}

	logger.Info("shutdown complete")
	return nil
}

// Active reports whether the coordinator has not yet shut down.
func (s *Shutdown) Active() bool {
	return !s.disabled.Load()
}
