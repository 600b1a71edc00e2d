// Package observability renders the session registry into read-only
// views for an external collaborator to inspect (spec §4.8) — the
// session manager itself never exports metrics or traces, it only
// exposes data for something else to read.
package observability

import (
	"fmt"
	"strings"

	"github.com/sessionfs/sessionfs/internal/procprobe"
	"github.com/sessionfs/sessionfs/internal/session"
)

// unknownOwner is substituted when the owning process can no longer be
// named.
const unknownOwner = "<unknown>"

// IncarnationView describes one incarnation for observability.
type IncarnationView struct {
	OwnerName string
}

// SessionView describes one session and its live incarnations.
type SessionView struct {
	IncarnationCount int
	Incarnations     map[string]IncarnationView
}

// SessionsView is a full point-in-time snapshot of the registry.
type SessionsView struct {
	ActiveCount int
	Sessions    map[string]SessionView
}

// Snapshot walks reg exactly as sweep does (RCU-style, without a
// pathname filter) and renders every live session and incarnation.
func Snapshot(reg *session.Registry, probe procprobe.Probe) SessionsView {
	view := SessionsView{Sessions: make(map[string]SessionView)}

	reg.Walk(func(s *session.Session) {
		incs := s.Incarnations()
		incView := make(map[string]IncarnationView, len(incs))
		for _, inc := range incs {
			name, ok := probe.Name(inc.OwnerPID)
			if !ok {
				name = unknownOwner
			}
			incView[fmt.Sprintf("%d_%d", inc.OwnerPID, inc.Fd)] = IncarnationView{OwnerName: name}
		}
		view.Sessions[slashForDash(s.Pathname())] = SessionView{
			IncarnationCount: len(incs),
			Incarnations:     incView,
		}
		view.ActiveCount += len(incs)
	})

	return view
}

// slashForDash renders a pathname as a map key by replacing path
// separators with dashes, so a pathname can be used verbatim where a
// consuming tool expects a single path segment.
func slashForDash(pathname string) string {
	return strings.ReplaceAll(pathname, "/", "-")
}
