// Package core composes the registry, lifecycle engine, path gate,
// shutdown coordinator, and configured host binding into the single
// facade every external surface (control channel, observability,
// daemon command) drives.
package core

import (
	"github.com/sessionfs/sessionfs/internal/hostfs"
	"github.com/sessionfs/sessionfs/internal/pathgate"
	"github.com/sessionfs/sessionfs/internal/procprobe"
	"github.com/sessionfs/sessionfs/internal/session"
)

// CoreState is the session manager's public surface.
type CoreState struct {
	registry *session.Registry
	gate     *pathgate.Gate
	manager  *session.Manager
	shutdown *session.Shutdown
	probe    procprobe.Probe
}

// New builds a CoreState bound to the given host filesystem and process
// probe, with the session root initialized to sessionRoot.
func New(fs hostfs.FS, probe procprobe.Probe, sessionRoot string) (*CoreState, error) {
	gate := pathgate.New()
	if sessionRoot != "" {
		if err := gate.SetRoot(sessionRoot); err != nil {
			return nil, err
		}
	}

	reg := session.NewRegistry()
	mgr := session.NewManager(reg, gate, fs, probe)
	sd := session.NewShutdown(mgr)

	return &CoreState{
		registry: reg,
		gate:     gate,
		manager:  mgr,
		shutdown: sd,
		probe:    probe,
	}, nil
}

// Open implements the OPEN operation, guarded by the shutdown
// coordinator's entry gate.
func (c *CoreState) Open(path string, flags hostfs.Flag, pid int, mode uint32) (*session.Incarnation, error) {
	done, err := c.shutdown.Enter()
	defer done()
	if err != nil {
		return nil, err
	}
	return c.manager.Create(path, flags, pid, mode)
}

// Close implements the CLOSE operation, guarded by the shutdown
// coordinator's entry gate.
func (c *CoreState) Close(path string, fd, pid int) error {
	done, err := c.shutdown.Enter()
	defer done()
	if err != nil {
		return err
	}
	return c.manager.Close(path, fd, pid)
}

// Sweep implements the SWEEP operation, guarded by the shutdown
// coordinator's entry gate. It returns 0 once shutdown has succeeded,
// since no incarnations remain by construction.
func (c *CoreState) Sweep() int {
	done, err := c.shutdown.Enter()
	defer done()
	if err != nil {
		return 0
	}
	return c.manager.Sweep()
}

// Shutdown attempts the two-phase shutdown sequence.
func (c *CoreState) Shutdown() error {
	return c.shutdown.Shutdown()
}

// GetRoot returns the current session root.
func (c *CoreState) GetRoot() string {
	return c.gate.GetRoot()
}

// SetRoot replaces the session root.
func (c *CoreState) SetRoot(path string) error {
	return c.gate.SetRoot(path)
}

// Registry exposes the underlying registry for observability snapshots.
func (c *CoreState) Registry() *session.Registry {
	return c.registry
}

// Probe exposes the configured process probe for observability.
func (c *CoreState) Probe() procprobe.Probe {
	return c.probe
}
