package logging

// WailsLoggerAdapter lets a window process route Wails runtime output through Logger.
// It satisfies github.com/wailsapp/wails/v2/pkg/logger.Logger.
type WailsLoggerAdapter struct {
	logger Logger
	label  string
}

// NewWailsLoggerAdapter creates an adapter that tags every entry with the window label
func NewWailsLoggerAdapter(logger Logger, label string) *WailsLoggerAdapter {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &WailsLoggerAdapter{
		logger: logger,
		label:  label,
	}
}

func (w *WailsLoggerAdapter) Print(message string) {
	w.logger.Info(message, "source", "wails", "window_label", w.label)
}

func (w *WailsLoggerAdapter) Trace(message string) {
	w.logger.Debug(message, "source", "wails", "window_label", w.label, "level", "trace")
}

func (w *WailsLoggerAdapter) Debug(message string) {
	w.logger.Debug(message, "source", "wails", "window_label", w.label)
}

func (w *WailsLoggerAdapter) Info(message string) {
	w.logger.Info(message, "source", "wails", "window_label", w.label)
}

func (w *WailsLoggerAdapter) Warning(message string) {
	w.logger.Warn(message, "source", "wails", "window_label", w.label)
}

func (w *WailsLoggerAdapter) Error(message string) {
	w.logger.Error(message, "source", "wails", "window_label", w.label)
}

// Fatal is logged at ERROR; a broken widget must not take the process down from inside Wails
func (w *WailsLoggerAdapter) Fatal(message string) {
	w.logger.Error(message, "source", "wails", "window_label", w.label, "level", "fatal")
}
