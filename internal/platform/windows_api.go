//go:build windows

package platform

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                = windows.NewLazySystemDLL("user32.dll")
	procGetWindowLongPtrW = user32.NewProc("GetWindowLongPtrW")
	procSetWindowLongPtrW = user32.NewProc("SetWindowLongPtrW")
	procSetWindowPos      = user32.NewProc("SetWindowPos")
	procIsWindowVisible   = user32.NewProc("IsWindowVisible")
)

const (
	gwlExStyle int32 = -20

	wsExToolWindow = 0x00000080
	wsExAppWindow  = 0x00040000

	swpNoSize       = 0x0001
	swpNoMove       = 0x0002
	swpNoZOrder     = 0x0004
	swpNoActivate   = 0x0010
	swpFrameChanged = 0x0020
	swpRefreshFlags = swpNoSize | swpNoMove | swpNoZOrder | swpNoActivate | swpFrameChanged
)

// EnumWindows callbacks are a limited resource, so one callback is shared
// and the current search is guarded by enumMu.
var (
	enumMu       sync.Mutex
	enumPID      uint32
	enumFound    []windows.HWND
	enumCallback = windows.NewCallback(enumWindowsProc)
)

func enumWindowsProc(hwnd windows.HWND, _ uintptr) uintptr {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return 1
	}
	if pid == enumPID {
		visible, _, _ := procIsWindowVisible.Call(uintptr(hwnd))
		if visible != 0 {
			enumFound = append(enumFound, hwnd)
		}
	}
	return 1
}

// WindowsAPI toggles WS_EX_TOOLWINDOW, which reliably hides a window from the taskbar and Alt+Tab
type WindowsAPI struct{}

// NewWindowsAPI creates a new Windows API instance
func NewWindowsAPI() *WindowsAPI {
	return &WindowsAPI{}
}

// NewWindowAPI creates a new WindowAPI instance for Windows
func NewWindowAPI() WindowAPI {
	return NewWindowsAPI()
}

func (w *WindowsAPI) SupportsToolWindow() bool {
	return true
}

func (w *WindowsAPI) SetToolWindow(pid int, enabled bool) error {
	hwnds, err := topLevelWindows(uint32(pid))
	if err != nil {
		return err
	}

	for _, hwnd := range hwnds {
		if err := setToolWindowStyle(hwnd, enabled); err != nil {
			return err
		}
	}
	return nil
}

// ApplyWorkspaceHints is a no-op; SkipTaskbar on Windows goes through SetToolWindow
func (w *WindowsAPI) ApplyWorkspaceHints(pid int, hints WorkspaceHints) error {
	return nil
}

func topLevelWindows(pid uint32) ([]windows.HWND, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumPID = pid
	enumFound = nil
	if err := windows.EnumWindows(enumCallback, unsafe.Pointer(nil)); err != nil {
		return nil, fmt.Errorf("EnumWindows failed: %w", err)
	}

	found := enumFound
	enumFound = nil
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: pid %d", ErrNoWindow, pid)
	}
	return found, nil
}

func setToolWindowStyle(hwnd windows.HWND, enabled bool) error {
	index := gwlExStyle
	style, _, _ := procGetWindowLongPtrW.Call(uintptr(hwnd), uintptr(index))

	if enabled {
		style = (style | wsExToolWindow) &^ wsExAppWindow
	} else {
		style = (style &^ wsExToolWindow) | wsExAppWindow
	}

	// SetWindowLongPtrW returns the previous value; zero with a non-zero last error is a failure
	ret, _, callErr := procSetWindowLongPtrW.Call(uintptr(hwnd), uintptr(index), style)
	if ret == 0 && callErr != nil && callErr != windows.ERROR_SUCCESS {
		return fmt.Errorf("SetWindowLongPtrW failed: %w", callErr)
	}

	procSetWindowPos.Call(uintptr(hwnd), 0, 0, 0, 0, 0, swpRefreshFlags)
	return nil
}
