package platform

import "errors"

// ErrNoWindow is returned when no top-level window belongs to the given process
var ErrNoWindow = errors.New("no top-level window for process")

// WindowAPI applies OS-level window styling that the toolkit cannot express
type WindowAPI interface {
	// SupportsToolWindow reports whether SetToolWindow has any effect on this platform
	SupportsToolWindow() bool
	SetToolWindow(pid int, enabled bool) error
	ApplyWorkspaceHints(pid int, hints WorkspaceHints) error
}

// WorkspaceHints are window manager hints for overlay windows
type WorkspaceHints struct {
	SkipTaskbar   bool
	SkipPager     bool
	AllWorkspaces bool
}

// EWMH _NET_WM_STATE atoms for the requested hints
func (h WorkspaceHints) states() []string {
	var out []string
	if h.SkipTaskbar {
		out = append(out, "_NET_WM_STATE_SKIP_TASKBAR")
	}
	if h.SkipPager {
		out = append(out, "_NET_WM_STATE_SKIP_PAGER")
	}
	if h.AllWorkspaces {
		out = append(out, "_NET_WM_STATE_STICKY")
	}
	return out
}

// Empty reports whether no hint is requested
func (h WorkspaceHints) Empty() bool {
	return len(h.states()) == 0
}
