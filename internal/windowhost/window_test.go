package windowhost

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/platform"
	"widgethost/internal/testutils"
	"widgethost/internal/toolkit"
	"widgethost/internal/types"
)

type fakeRuntime struct {
	mu      sync.Mutex
	scripts []string
	shown   int
	quit    chan struct{}
	once    sync.Once
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{quit: make(chan struct{})}
}

func (f *fakeRuntime) ExecJS(ctx context.Context, script string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script)
}

func (f *fakeRuntime) Show(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown++
}

func (f *fakeRuntime) Quit(ctx context.Context) {
	f.once.Do(func() { close(f.quit) })
}

func (f *fakeRuntime) Scripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scripts...)
}

type fakePlatform struct {
	mu        sync.Mutex
	hints     []platform.WorkspaceHints
	toolCalls []bool
	hintErr   error
}

func (f *fakePlatform) SupportsToolWindow() bool { return true }

func (f *fakePlatform) SetToolWindow(pid int, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolCalls = append(f.toolCalls, enabled)
	return nil
}

func (f *fakePlatform) ApplyWorkspaceHints(pid int, hints platform.WorkspaceHints) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hints = append(f.hints, hints)
	return f.hintErr
}

type harness struct {
	window  *Window
	runtime *fakeRuntime
	api     *fakePlatform
	logger  *testutils.RecordingLogger
	stdin   *io.PipeWriter
	events  *bufio.Scanner
}

func newHarness(t *testing.T, cfg toolkit.WindowConfig) *harness {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	t.Cleanup(func() {
		inW.Close()
		outR.Close()
	})

	h := &harness{
		runtime: newFakeRuntime(),
		api:     &fakePlatform{},
		logger:  testutils.NewRecordingLogger(),
		stdin:   inW,
		events:  bufio.NewScanner(outR),
	}
	h.window = newWindow(cfg, inR, outW, h.api, h.runtime, h.logger)
	return h
}

func (h *harness) nextEvent(t *testing.T) toolkit.Event {
	t.Helper()

	got := make(chan toolkit.Event, 1)
	go func() {
		var ev toolkit.Event
		if h.events.Scan() {
			_ = json.Unmarshal(h.events.Bytes(), &ev)
		}
		got <- ev
	}()

	select {
	case ev := <-got:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return toolkit.Event{}
	}
}

func (h *harness) send(t *testing.T, cmd toolkit.Command) {
	t.Helper()
	line, _ := json.Marshal(cmd)
	go func() {
		_, _ = h.stdin.Write(append(line, '\n'))
	}()
}

func testConfig() toolkit.WindowConfig {
	return toolkit.WindowConfig{
		Label:                  "1-bar",
		WindowID:               "bar",
		Title:                  "Widgethost - bar",
		Width:                  toolkit.DefaultWidth,
		Height:                 toolkit.DefaultHeight,
		SkipTaskbar:            true,
		VisibleOnAllWorkspaces: true,
		Transparent:            true,
	}
}

func TestWindow_ReadyThenServesCommands(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx := context.Background()

	h.window.startup(ctx)
	go h.window.domReady(ctx)

	ready := h.nextEvent(t)
	if ready.Type != toolkit.EventReady || ready.PID != os.Getpid() {
		t.Fatalf("expected ready event with pid, got %+v", ready)
	}

	h.send(t, toolkit.Command{Type: toolkit.CommandEval, Script: "window.x=1;"})
	if ev := h.nextEvent(t); ev.Type != toolkit.EventReply {
		t.Fatalf("expected reply to eval, got %+v", ev)
	}
	if scripts := h.runtime.Scripts(); len(scripts) != 1 || scripts[0] != "window.x=1;" {
		t.Errorf("unexpected scripts %v", scripts)
	}

	h.send(t, toolkit.Command{Type: toolkit.CommandToolWindow, Enabled: true})
	if ev := h.nextEvent(t); ev.Type != toolkit.EventReply {
		t.Fatalf("expected reply to tool-window, got %+v", ev)
	}

	h.api.mu.Lock()
	toolCalls := append([]bool(nil), h.api.toolCalls...)
	hints := append([]platform.WorkspaceHints(nil), h.api.hints...)
	h.api.mu.Unlock()

	if len(toolCalls) != 1 || !toolCalls[0] {
		t.Errorf("expected SetToolWindow(true), got %v", toolCalls)
	}
	want := platform.WorkspaceHints{SkipTaskbar: true, SkipPager: true, AllWorkspaces: true}
	if len(hints) != 1 || hints[0] != want {
		t.Errorf("expected hints %+v, got %v", want, hints)
	}
}

func TestWindow_QuitsWhenHostClosesStdin(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx := context.Background()

	go h.window.domReady(ctx)
	h.nextEvent(t)

	h.stdin.Close()

	select {
	case <-h.runtime.quit:
	case <-time.After(5 * time.Second):
		t.Fatal("window did not quit after stdin closed")
	}
	<-h.window.served
}

func TestWindow_DomReadyReportsOnce(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx := context.Background()

	go func() {
		h.window.domReady(ctx)
		h.window.domReady(ctx)
	}()
	h.nextEvent(t)

	h.send(t, toolkit.Command{Type: toolkit.CommandEval, Script: "1"})
	if ev := h.nextEvent(t); ev.Type != toolkit.EventReply {
		t.Fatalf("second event should be the eval reply, got %+v", ev)
	}

	h.runtime.mu.Lock()
	shown := h.runtime.shown
	h.runtime.mu.Unlock()
	if shown != 1 {
		t.Errorf("window shown %d times, want 1", shown)
	}
}

func TestWindow_HintFailureIsLogged(t *testing.T) {
	h := newHarness(t, testConfig())
	h.api.hintErr = errors.New("no EWMH")

	go h.window.domReady(context.Background())
	if ev := h.nextEvent(t); ev.Type != toolkit.EventReady {
		t.Fatalf("hint failure must not block ready, got %+v", ev)
	}
	if !h.logger.Contains("WARN", "Failed to apply workspace hints") {
		t.Error("expected hint failure warning")
	}
}

func TestWindow_NoHintsRequested(t *testing.T) {
	cfg := testConfig()
	cfg.SkipTaskbar = false
	cfg.VisibleOnAllWorkspaces = false
	h := newHarness(t, cfg)

	go h.window.domReady(context.Background())
	h.nextEvent(t)

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	if len(h.api.hints) != 0 {
		t.Errorf("expected no hint calls, got %v", h.api.hints)
	}
}

func TestWindow_EvalBeforeStartup(t *testing.T) {
	h := newHarness(t, testConfig())
	if err := h.window.Eval("1"); !errors.Is(err, errNotStarted) {
		t.Errorf("expected errNotStarted, got %v", err)
	}
}

func TestWindow_FailBeforeReady(t *testing.T) {
	h := newHarness(t, testConfig())

	go h.window.fail(errors.New("no display"))
	ev := h.nextEvent(t)
	if ev.Type != toolkit.EventError || ev.Error != "no display" {
		t.Fatalf("expected error event, got %+v", ev)
	}
}

func TestValidateContentDir(t *testing.T) {
	withIndex := t.TempDir()
	if err := os.WriteFile(filepath.Join(withIndex, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(withIndex, "index.html")

	tests := []struct {
		name    string
		dir     string
		wantErr string
	}{
		{"valid", withIndex, ""},
		{"empty", "", "not set"},
		{"missing", filepath.Join(withIndex, "nope"), "content directory"},
		{"file", file, "not a directory"},
		{"no index", t.TempDir(), "no index.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContentDir(tt.dir)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestAppOptions(t *testing.T) {
	cfg := testConfig()
	cfg.ContentDir = t.TempDir()
	cfg.LogLevel = "debug"
	h := newHarness(t, cfg)

	opts := appOptions(cfg, h.window, NewBridge(cfg.Label, ""), h.logger)

	if opts.Title != "Widgethost - bar" || opts.Width != 500 || opts.Height != 500 {
		t.Errorf("unexpected geometry/title: %q %dx%d", opts.Title, opts.Width, opts.Height)
	}
	if !opts.Frameless || !opts.DisableResize || !opts.StartHidden {
		t.Errorf("expected frameless, fixed-size, hidden window: %+v", opts)
	}
	if opts.BackgroundColour == nil || opts.BackgroundColour.A != 0 {
		t.Errorf("expected transparent background, got %+v", opts.BackgroundColour)
	}
	if !opts.Windows.WebviewIsTransparent || !opts.Windows.DisableFramelessWindowDecorations {
		t.Errorf("unexpected windows options: %+v", opts.Windows)
	}
	if !opts.Linux.WindowIsTranslucent {
		t.Error("expected translucent linux window")
	}
	if len(opts.Bind) != 1 {
		t.Errorf("expected the bridge to be bound, got %d bindings", len(opts.Bind))
	}
}

type fakeSource struct {
	state types.WindowState
	ok    bool
	err   error
}

func (f fakeSource) StateByWindowLabel(label string) (types.WindowState, bool, error) {
	return f.state, f.ok, f.err
}

func TestBridge_OpenArgs(t *testing.T) {
	state := types.WindowState{WindowID: "bar", WindowLabel: "1-bar", Args: map[string]string{"a": "b"}}

	tests := []struct {
		name     string
		source   stateSource
		wantErr  func(error) bool
		wantArgs map[string]string
	}{
		{"found", fakeSource{state: state, ok: true}, nil, map[string]string{"a": "b"}},
		{"not found", fakeSource{}, hosterrors.IsNotFound, nil},
		{"host down", fakeSource{err: hosterrors.HandleConnectionError("dial", "refused")}, hosterrors.IsConnection, nil},
		{"no socket", nil, hosterrors.IsConnection, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Bridge{label: "1-bar", source: tt.source}
			got, err := b.OpenArgs()
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenArgs failed: %v", err)
			}
			if got.Args["a"] != tt.wantArgs["a"] {
				t.Errorf("args = %v, want %v", got.Args, tt.wantArgs)
			}
		})
	}

	if NewBridge("2-clock", "").Label() != "2-clock" {
		t.Error("Label() should return the window label")
	}
}
