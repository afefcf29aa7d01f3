//go:build darwin

package platform

// DarwinAPI has no extra styling; the toolkit options cover macOS
type DarwinAPI struct{}

// NewDarwinAPI creates a new macOS API instance
func NewDarwinAPI() *DarwinAPI {
	return &DarwinAPI{}
}

// NewWindowAPI creates a new WindowAPI instance for macOS
func NewWindowAPI() WindowAPI {
	return NewDarwinAPI()
}

func (d *DarwinAPI) SupportsToolWindow() bool {
	return false
}

func (d *DarwinAPI) SetToolWindow(pid int, enabled bool) error {
	return ErrUnsupported
}

func (d *DarwinAPI) ApplyWorkspaceHints(pid int, hints WorkspaceHints) error {
	return nil
}
