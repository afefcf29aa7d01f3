package windowhost

import (
	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/ipc"
	"widgethost/internal/types"
)

// stateSource looks up window records in the host
type stateSource interface {
	StateByWindowLabel(label string) (types.WindowState, bool, error)
}

// Bridge is bound into the page as window.go.windowhost.Bridge. Pages that
// load after the open-args injection fetch their record through it.
type Bridge struct {
	label  string
	source stateSource
}

// NewBridge creates a Bridge that queries the host listening on socketPath
func NewBridge(label, socketPath string) *Bridge {
	var source stateSource
	if socketPath != "" {
		source = ipc.NewClient(socketPath)
	}
	return &Bridge{label: label, source: source}
}

// Label returns this window's label
func (b *Bridge) Label() string {
	return b.label
}

// OpenArgs returns this window's record from the host registry
func (b *Bridge) OpenArgs() (types.WindowState, error) {
	if b.source == nil {
		return types.WindowState{}, hosterrors.HandleConnectionError("OpenArgs", "no host socket configured")
	}

	state, ok, err := b.source.StateByWindowLabel(b.label)
	if err != nil {
		return types.WindowState{}, err
	}
	if !ok {
		return types.WindowState{}, hosterrors.HandleNotFound("OpenArgs", "window", b.label)
	}
	return state, nil
}
