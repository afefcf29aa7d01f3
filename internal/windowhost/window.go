// Package windowhost runs a single widget window inside a child process and
// answers the host's commands on stdin.
package windowhost

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/platform"
	"widgethost/internal/toolkit"
)

var errNotStarted = errors.New("window runtime not started")

// runtimeAPI is the part of the Wails runtime a window uses
type runtimeAPI interface {
	ExecJS(ctx context.Context, script string)
	Show(ctx context.Context)
	Quit(ctx context.Context)
}

// Window is the toolkit.Executor for the window owned by this process
type Window struct {
	cfg      toolkit.WindowConfig
	in       io.Reader
	events   *toolkit.EventWriter
	platform platform.WindowAPI
	runtime  runtimeAPI
	logger   logging.Logger
	pid      int

	mu  sync.RWMutex
	ctx context.Context

	readyOnce sync.Once
	ready     bool
	served    chan struct{}
}

var _ toolkit.Executor = (*Window)(nil)

func newWindow(cfg toolkit.WindowConfig, in io.Reader, out io.Writer, api platform.WindowAPI, rt runtimeAPI, logger logging.Logger) *Window {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if api == nil {
		api = platform.NewWindowAPI()
	}
	return &Window{
		cfg:      cfg,
		in:       in,
		events:   toolkit.NewEventWriter(out),
		platform: api,
		runtime:  rt,
		logger:   logger,
		pid:      os.Getpid(),
		served:   make(chan struct{}),
	}
}

func (w *Window) context() context.Context {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ctx
}

func (w *Window) startup(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()
	w.logger.Debug("Window runtime started", "window_label", w.cfg.Label)
}

// domReady shows the window and reports ready once; later reloads only re-apply hints
func (w *Window) domReady(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.readyOnce.Do(func() {
		w.runtime.Show(ctx)
		w.applyHints()

		w.mu.Lock()
		w.ready = true
		w.mu.Unlock()

		if err := w.events.Write(toolkit.Event{Type: toolkit.EventReady, PID: w.pid}); err != nil {
			w.logger.Error("Failed to report ready", "window_label", w.cfg.Label, "error", err.Error())
			w.runtime.Quit(ctx)
			return
		}
		go w.serve(ctx)
	})
}

func (w *Window) applyHints() {
	hints := platform.WorkspaceHints{
		SkipTaskbar:   w.cfg.SkipTaskbar,
		SkipPager:     w.cfg.SkipTaskbar,
		AllWorkspaces: w.cfg.VisibleOnAllWorkspaces,
	}
	if hints.Empty() {
		return
	}
	if err := w.platform.ApplyWorkspaceHints(w.pid, hints); err != nil {
		w.logger.Warn("Failed to apply workspace hints", "window_label", w.cfg.Label, "error", err.Error())
	}
}

// serve answers host commands; the window quits when the host closes stdin
func (w *Window) serve(ctx context.Context) {
	defer close(w.served)

	if err := toolkit.Serve(w.in, w.events, w); err != nil {
		w.logger.Warn("Command stream failed", "window_label", w.cfg.Label, "error", err.Error())
	}
	w.logger.Debug("Host closed command stream, quitting", "window_label", w.cfg.Label)
	w.runtime.Quit(ctx)
}

// Eval runs script in the window's page without waiting for a result
func (w *Window) Eval(script string) error {
	ctx := w.context()
	if ctx == nil {
		return errNotStarted
	}
	w.runtime.ExecJS(ctx, script)
	return nil
}

// SetToolWindow toggles tool-window styling on this process's windows
func (w *Window) SetToolWindow(enabled bool) error {
	return w.platform.SetToolWindow(w.pid, enabled)
}

// fail reports err to the host unless the window already reported ready
func (w *Window) fail(err error) {
	w.mu.RLock()
	ready := w.ready
	w.mu.RUnlock()

	if ready || err == nil {
		return
	}
	if werr := w.events.Write(toolkit.Event{Type: toolkit.EventError, Error: err.Error()}); werr != nil {
		w.logger.Error("Failed to report window failure", "window_label", w.cfg.Label, "error", werr.Error())
	}
}
