package toolkit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/platform"
)

// ErrHandleClosed is returned by requests on a closed handle
var ErrHandleClosed = errors.New("window handle closed")

const closeTimeout = 5 * time.Second

// ProcessOptions configures a ProcessToolkit
type ProcessOptions struct {
	// Executable defaults to the running binary
	Executable string
	// BaseArgs are placed before "window --config <json>"
	BaseArgs []string
	// Env is appended to the host environment
	Env      []string
	Resolve  Resolver
	Platform platform.WindowAPI
	Logger   logging.Logger
	// Stderr receives the window process's log output; defaults to os.Stderr
	Stderr io.Writer
}

// ProcessToolkit runs every window in its own child process, since the
// webview toolkit supports one window per process.
type ProcessToolkit struct {
	executable string
	baseArgs   []string
	env        []string
	resolve    Resolver
	platform   platform.WindowAPI
	logger     logging.Logger
	stderr     io.Writer
}

// NewProcessToolkit creates a ProcessToolkit
func NewProcessToolkit(opts ProcessOptions) (*ProcessToolkit, error) {
	executable := opts.Executable
	if executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate executable: %w", err)
		}
		executable = exe
	}

	p := &ProcessToolkit{
		executable: executable,
		baseArgs:   slices.Clone(opts.BaseArgs),
		env:        slices.Clone(opts.Env),
		resolve:    opts.Resolve,
		platform:   opts.Platform,
		logger:     opts.Logger,
		stderr:     opts.Stderr,
	}
	if p.platform == nil {
		p.platform = platform.NewWindowAPI()
	}
	if p.logger == nil {
		p.logger = logging.NewDefaultLogger()
	}
	if p.stderr == nil {
		p.stderr = os.Stderr
	}
	return p, nil
}

// Construct starts a window process and blocks until it reports ready
func (p *ProcessToolkit) Construct(cfg WindowConfig) (Handle, error) {
	if p.resolve != nil {
		resolved, err := p.resolve(cfg)
		if err != nil {
			return nil, err
		}
		cfg = resolved
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode window config: %w", err)
	}

	args := append(slices.Clone(p.baseArgs), "window", "--config", string(payload))
	cmd := exec.Command(p.executable, args...)
	cmd.Env = append(os.Environ(), p.env...)
	cmd.Stderr = p.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start window process: %w", err)
	}

	events := newScanner(stdout)
	ev, err := readEvent(events)
	if err != nil {
		stdin.Close()
		waitErr := cmd.Wait()
		return nil, fmt.Errorf("window process exited before ready: %w", errors.Join(err, waitErr))
	}
	if ev.Type != EventReady {
		stdin.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		if ev.Type == EventError {
			return nil, fmt.Errorf("window process failed: %s", ev.Error)
		}
		return nil, fmt.Errorf("unexpected first event %q from window process", ev.Type)
	}

	h := &processHandle{
		label:  cfg.Label,
		pid:    cmd.Process.Pid,
		cmd:    cmd,
		stdin:  stdin,
		enc:    json.NewEncoder(stdin),
		events: events,
		logger: p.logger,
	}
	p.logger.Debug("Window process ready", "window_label", cfg.Label, "pid", h.pid)

	if p.platform.SupportsToolWindow() {
		return &toolWindowHandle{processHandle: h}, nil
	}
	return h, nil
}

func readEvent(scanner *bufio.Scanner) (Event, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Event{}, err
		}
		return Event{}, io.EOF
	}

	var ev Event
	if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
		return Event{}, fmt.Errorf("invalid event from window process: %w", err)
	}
	return ev, nil
}

// processHandle talks to one window process; one request is in flight at a time
type processHandle struct {
	mu     sync.Mutex
	label  string
	pid    int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	enc    *json.Encoder
	events *bufio.Scanner
	logger logging.Logger
	closed bool
}

func (h *processHandle) Label() string {
	return h.label
}

// PID returns the window process id
func (h *processHandle) PID() int {
	return h.pid
}

func (h *processHandle) Eval(script string) error {
	return h.request(Command{Type: CommandEval, Script: script})
}

func (h *processHandle) request(cmd Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}

	if err := h.enc.Encode(cmd); err != nil {
		return fmt.Errorf("failed to send %s command: %w", cmd.Type, err)
	}

	ev, err := readEvent(h.events)
	if err != nil {
		return fmt.Errorf("no reply to %s command: %w", cmd.Type, err)
	}

	switch ev.Type {
	case EventReply:
		return nil
	case EventError:
		return errors.New(ev.Error)
	default:
		return fmt.Errorf("unexpected event %q", ev.Type)
	}
}

// Close ends the window process; the process quits when its stdin closes
func (h *processHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	_ = h.stdin.Close()

	done := make(chan error, 1)
	go func() {
		done <- h.cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(closeTimeout):
		h.logger.Warn("Window process did not exit, killing it", "window_label", h.label, "pid", h.pid)
		_ = h.cmd.Process.Kill()
		return <-done
	}
}

// toolWindowHandle is a processHandle on a platform with tool-window styling
type toolWindowHandle struct {
	*processHandle
}

func (h *toolWindowHandle) SetToolWindow(enabled bool) error {
	return h.request(Command{Type: CommandToolWindow, Enabled: enabled})
}
