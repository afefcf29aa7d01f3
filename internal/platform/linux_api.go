//go:build linux

package platform

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
)

const netWmStateAdd = 1

// LinuxAPI sets EWMH state on X11; tool-window styling does not exist here
type LinuxAPI struct {
	connect func() (*xgbutil.XUtil, error)
}

// NewLinuxAPI creates a new Linux API instance
func NewLinuxAPI() *LinuxAPI {
	return &LinuxAPI{connect: xgbutil.NewConn}
}

// NewWindowAPI creates a new WindowAPI instance for Linux
func NewWindowAPI() WindowAPI {
	return NewLinuxAPI()
}

func (l *LinuxAPI) SupportsToolWindow() bool {
	return false
}

func (l *LinuxAPI) SetToolWindow(pid int, enabled bool) error {
	return ErrUnsupported
}

// ApplyWorkspaceHints requests _NET_WM_STATE changes on every managed window owned by pid
func (l *LinuxAPI) ApplyWorkspaceHints(pid int, hints WorkspaceHints) error {
	states := hints.states()
	if len(states) == 0 {
		return nil
	}

	xu, err := l.connect()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer xu.Conn().Close()

	windows, err := windowsForPID(xu, pid)
	if err != nil {
		return err
	}

	for _, win := range windows {
		for _, state := range states {
			if err := ewmh.WmStateReq(xu, win, netWmStateAdd, state); err != nil {
				return fmt.Errorf("failed to set %s on window %d: %w", state, win, err)
			}
		}
	}
	return nil
}

func windowsForPID(xu *xgbutil.XUtil, pid int) ([]xproto.Window, error) {
	clients, err := ewmh.ClientListGet(xu)
	if err != nil {
		return nil, fmt.Errorf("failed to read client list: %w", err)
	}

	var out []xproto.Window
	for _, win := range clients {
		p, err := ewmh.WmPidGet(xu, win)
		if err != nil {
			continue
		}
		if int(p) == pid {
			out = append(out, win)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: pid %d", ErrNoWindow, pid)
	}
	return out, nil
}
