package platform

import "errors"

// ErrUnsupported is returned by operations the current platform cannot perform
var ErrUnsupported = errors.ErrUnsupported

// NoopAPI is a WindowAPI that does nothing; used on other platforms and in tests
type NoopAPI struct{}

func (NoopAPI) SupportsToolWindow() bool                                { return false }
func (NoopAPI) SetToolWindow(pid int, enabled bool) error               { return ErrUnsupported }
func (NoopAPI) ApplyWorkspaceHints(pid int, hints WorkspaceHints) error { return nil }
