//go:build linux

package procprobe

import (
	"os"
	"strconv"
	"strings"
)

// OS probes process liveness through /proc, the production binding on
// Linux.
type OS struct{}

// NewOS returns the Linux /proc-backed probe.
func NewOS() *OS { return &OS{} }

// Check reads /proc/<pid>/stat and inspects the process state field.
func (OS) Check(pid int) State {
	data, err := os.ReadFile(procPath(pid, "stat"))
	if err != nil {
		return Gone
	}
	// The state field is the third whitespace-separated field, but the
	// second field (comm) is parenthesized and may itself contain
	// spaces, so we split on the last ')' instead of naive Fields().
	line := string(data)
	idx := strings.LastIndexByte(line, ')')
	if idx < 0 || idx+2 >= len(line) {
		return Gone
	}
	switch line[idx+2] {
	case 'Z':
		return Zombie
	case 'T':
		return Stopped
	case 't':
		return Traced
	default:
		return Alive
	}
}

// Name resolves the process's comm (command name) field.
func (OS) Name(pid int) (string, bool) {
	data, err := os.ReadFile(procPath(pid, "comm"))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func procPath(pid int, leaf string) string {
	return "/proc/" + strconv.Itoa(pid) + "/" + leaf
}
