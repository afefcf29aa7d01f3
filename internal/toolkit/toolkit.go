// Package toolkit is the boundary between the window registry and the GUI toolkit.
package toolkit

const (
	DefaultWidth  = 500
	DefaultHeight = 500
)

// WindowConfig describes one window to construct
type WindowConfig struct {
	Label    string `json:"label"`
	WindowID string `json:"windowId"`
	Title    string `json:"title"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	Focused                bool `json:"focused"`
	SkipTaskbar            bool `json:"skipTaskbar"`
	VisibleOnAllWorkspaces bool `json:"visibleOnAllWorkspaces"`
	Transparent            bool `json:"transparent"`
	Shadow                 bool `json:"shadow"`
	Decorations            bool `json:"decorations"`
	Resizable              bool `json:"resizable"`

	// Filled in by the toolkit from the window definition
	ContentDir string `json:"contentDir,omitempty"`
	SocketPath string `json:"socketPath,omitempty"`
	LogLevel   string `json:"logLevel,omitempty"`
}

// Toolkit constructs windows. Construct may block until the window exists.
type Toolkit interface {
	Construct(cfg WindowConfig) (Handle, error)
}

// Handle is an opaque reference to a constructed window
type Handle interface {
	Label() string
	Eval(script string) error
	Close() error
}

// ToolWindower is implemented by handles on platforms that have tool-window styling
type ToolWindower interface {
	SetToolWindow(enabled bool) error
}

// Resolver fills in definition-specific settings before a window is constructed
type Resolver func(cfg WindowConfig) (WindowConfig, error)
