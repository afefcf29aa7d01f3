// Package registry assigns unique labels to window-open requests, constructs
// the windows concurrently and tracks every window that opened successfully.
package registry

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/toolkit"
	"widgethost/internal/types"
)

const titlePrefix = "Widgethost - "

// ErrClosed is reported for windows that finish opening after Close
var ErrClosed = errors.New("registry closed")

// AttemptRecorder receives one entry per open attempt, successful or not
type AttemptRecorder interface {
	RecordAttempt(attempt types.OpenAttempt) error
}

type entry struct {
	seq    int64
	state  types.WindowState
	handle toolkit.Handle
}

// Registry is the single source of truth for open windows
type Registry struct {
	toolkit  toolkit.Toolkit
	logger   logging.Logger
	recorder AttemptRecorder
	environ  func() map[string]string

	counter atomic.Int64

	mu      sync.Mutex
	windows map[string]entry
	closed  bool

	inflight sync.WaitGroup
}

// Option configures a Registry
type Option func(*Registry)

// WithRecorder reports every open attempt to rec
func WithRecorder(rec AttemptRecorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// WithEnviron replaces the environment snapshot taken for each window
func WithEnviron(environ func() map[string]string) Option {
	return func(r *Registry) {
		r.environ = environ
	}
}

// New creates a Registry that builds windows with tk
func New(tk toolkit.Toolkit, logger logging.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	r := &Registry{
		toolkit: tk,
		logger:  logger,
		environ: Environ,
		windows: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Environ snapshots the process environment. Entries without a name are skipped.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// TryOpen starts opening a window and returns without waiting. The sequence
// number is taken before the goroutine starts, so every call consumes exactly
// one number even if construction fails. Failures are only logged.
func (r *Registry) TryOpen(req types.OpenRequest) {
	seq := r.counter.Add(1)

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()

		start := time.Now()
		state, handle, err := r.open(req, seq)
		if err == nil {
			err = r.insert(seq, state, handle)
		}
		if err != nil {
			r.record(req, seq, state.WindowLabel, err)
			logging.LogError(r.logger, "Failed to open window", err, "open", map[string]interface{}{
				"window_id": req.WindowID,
				"sequence":  seq,
			})
			return
		}

		r.logger.Info("Opened window",
			"window_count", r.Len(),
			"window_id", state.WindowID,
			"window_label", state.WindowLabel,
			"args", state.Args,
		)
		logging.LogOperation(r.logger, "open_window", time.Since(start), map[string]interface{}{
			"window_label": state.WindowLabel,
		})

		r.record(req, seq, state.WindowLabel, nil)
	}()
}

// insert adds a constructed window; after Close the window is closed instead
func (r *Registry) insert(seq int64, state types.WindowState, handle toolkit.Handle) error {
	r.mu.Lock()
	if !r.closed {
		r.windows[state.WindowLabel] = entry{seq: seq, state: state, handle: handle}
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if err := handle.Close(); err != nil {
		r.logger.Warn("Failed to close window opened after shutdown", "window_label", state.WindowLabel, "error", err.Error())
	}
	return hosterrors.NewWithContext("open", ErrClosed, hosterrors.ErrCodeConstruction, map[string]string{
		"window_label": state.WindowLabel,
	})
}

// open builds one window. The registry lock is not held here.
func (r *Registry) open(req types.OpenRequest, seq int64) (state types.WindowState, handle toolkit.Handle, err error) {
	label := Label(seq, req.WindowID)
	state.WindowLabel = label

	defer func() {
		if p := recover(); p != nil {
			if handle != nil {
				_ = handle.Close()
			}
			handle = nil
			err = hosterrors.HandleConstructionError("open", label, fmt.Errorf("toolkit panic: %v", p))
		}
	}()

	cfg := toolkit.WindowConfig{
		Label:                  label,
		WindowID:               req.WindowID,
		Title:                  titlePrefix + req.WindowID,
		Width:                  toolkit.DefaultWidth,
		Height:                 toolkit.DefaultHeight,
		Focused:                false,
		SkipTaskbar:            true,
		VisibleOnAllWorkspaces: true,
		Transparent:            true,
		Shadow:                 false,
		Decorations:            false,
		Resizable:              false,
	}

	handle, err = r.toolkit.Construct(cfg)
	if err != nil {
		return state, nil, hosterrors.HandleConstructionError("open", label, err)
	}
	if handle == nil {
		return state, nil, hosterrors.HandleConstructionError("open", label, errors.New("toolkit returned no window"))
	}

	state = types.WindowState{
		WindowID:    req.WindowID,
		WindowLabel: label,
		Args:        req.ArgsMap(),
		Env:         r.environ(),
	}

	script, err := state.InjectionScript()
	if err != nil {
		_ = handle.Close()
		return state, nil, hosterrors.HandleSerializationError("open", label, err)
	}

	if err := handle.Eval(script); err != nil {
		logging.LogWarning(r.logger, "Ignoring open args injection failure",
			hosterrors.HandleScriptInjectionError("open", label, err), "inject_open_args", nil)
	}

	if tw, ok := handle.(toolkit.ToolWindower); ok {
		if err := tw.SetToolWindow(true); err != nil {
			r.logger.Warn("Failed to apply tool window style", "window_label", label, "error", err.Error())
		}
	}

	return state, handle, nil
}

func (r *Registry) record(req types.OpenRequest, seq int64, label string, openErr error) {
	if r.recorder == nil {
		return
	}

	attempt := types.OpenAttempt{
		Sequence:    seq,
		WindowID:    req.WindowID,
		WindowLabel: label,
		Args:        req.ArgsMap(),
		Status:      types.AttemptRegistered,
		CreatedAt:   time.Now().UTC(),
	}
	if openErr != nil {
		attempt.Status = types.AttemptFailed
		attempt.Error = openErr.Error()
	}

	if err := r.recorder.RecordAttempt(attempt); err != nil {
		r.logger.Warn("Failed to record open attempt", "window_label", label, "error", err.Error())
	}
}

// StateByWindowLabel returns a copy of the record for label, or false when no such window is open
func (r *Registry) StateByWindowLabel(label string) (types.WindowState, bool) {
	r.mu.Lock()
	e, ok := r.windows[label]
	r.mu.Unlock()

	if !ok {
		return types.WindowState{}, false
	}
	return e.state.Clone(), true
}

// States returns copies of all records ordered by sequence number
func (r *Registry) States() []types.WindowState {
	r.mu.Lock()
	entries := slices.Collect(maps.Values(r.windows))
	r.mu.Unlock()

	slices.SortFunc(entries, func(a, b entry) int {
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]types.WindowState, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.state.Clone())
	}
	return out
}

// Len returns the number of registered windows
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

// OpenCount returns how many opens have been requested
func (r *Registry) OpenCount() int64 {
	return r.counter.Load()
}

// Wait blocks until every in-flight open has finished
func (r *Registry) Wait() {
	r.inflight.Wait()
}

// Close closes every registered window and empties the registry. Opens still
// in flight close their window when they finish.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	windows := r.windows
	r.windows = make(map[string]entry)
	r.mu.Unlock()

	var errs []error
	for label, e := range windows {
		if err := e.handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", label, err))
		}
	}
	return errors.Join(errs...)
}

// Label derives the window label from a sequence number and window id
func Label(seq int64, windowID string) string {
	return strconv.FormatInt(seq, 10) + "-" + windowID
}
