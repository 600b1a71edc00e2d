package procprobe

import "sync"

// Scripted is a test fake that lets a test script process liveness
// without spawning real processes.
type Scripted struct {
	mu     sync.Mutex
	states map[int]State
	names  map[int]string
}

// NewScripted returns an empty scripted probe; every unset pid reports
// Alive until scripted otherwise.
func NewScripted() *Scripted {
	return &Scripted{
		states: make(map[int]State),
		names:  make(map[int]string),
	}
}

// SetState scripts the liveness state reported for pid.
func (s *Scripted) SetState(pid int, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[pid] = state
}

// SetName scripts the process name reported for pid.
func (s *Scripted) SetName(pid int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[pid] = name
}

// Kill scripts pid as Gone, as if the process had exited and been
// reaped.
func (s *Scripted) Kill(pid int) {
	s.SetState(pid, Gone)
}

func (s *Scripted) Check(pid int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[pid]
	if !ok {
		return Alive
	}
	return state
}

func (s *Scripted) Name(pid int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[pid]
	if !ok {
		return "", false
	}
	return name, true
}
