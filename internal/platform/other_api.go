//go:build !linux && !darwin && !windows

package platform

// NewWindowAPI returns a no-op API on platforms without window styling support
func NewWindowAPI() WindowAPI {
	return NoopAPI{}
}
