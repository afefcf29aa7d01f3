package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"widgethost/internal/config"
	"widgethost/internal/database"
	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/ipc"
	"widgethost/internal/journal"
	"widgethost/internal/testutils"
	"widgethost/internal/toolkit"
	"widgethost/internal/types"
)

type stubHandle struct {
	label string

	mu     sync.Mutex
	closed bool
}

func (h *stubHandle) Label() string            { return h.label }
func (h *stubHandle) Eval(script string) error { return nil }

func (h *stubHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *stubHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type stubToolkit struct {
	mu      sync.Mutex
	handles []*stubHandle
}

func (s *stubToolkit) Construct(cfg toolkit.WindowConfig) (toolkit.Handle, error) {
	if cfg.WindowID == "broken" {
		return nil, errors.New("no display")
	}
	h := &stubHandle{label: cfg.Label}
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h, nil
}

func (s *stubToolkit) Handles() []*stubHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*stubHandle(nil), s.handles...)
}

func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "wh")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "host.sock")
}

func testConfig(t *testing.T, journalEnabled bool) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WindowsDir = t.TempDir()
	cfg.Journal.Enabled = &journalEnabled
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	return cfg
}

func startApp(t *testing.T, cfg *config.Config, tk toolkit.Toolkit) (*App, *testutils.RecordingLogger) {
	t.Helper()
	logger := testutils.NewRecordingLogger()

	a, err := New(cfg, logger, WithToolkit(tk), WithSocketPath(shortSocketPath(t)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Startup(context.Background()); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return a, logger
}

func TestApp_OpenIsVisibleOverIPC(t *testing.T) {
	tk := &stubToolkit{}
	a, _ := startApp(t, testConfig(t, false), tk)

	a.Open(types.OpenRequest{WindowID: "bar", Args: []types.ArgPair{{Key: "label", Value: "main"}}})
	a.Registry().Wait()

	client := ipc.NewClient(a.SocketPath())
	state, ok, err := client.StateByWindowLabel("1-bar")
	if err != nil || !ok {
		t.Fatalf("StateByWindowLabel = %v, %v", ok, err)
	}
	if state.Args["label"] != "main" {
		t.Errorf("args = %v", state.Args)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.SessionID != a.SessionID() || status.WindowCount != 1 {
		t.Errorf("unexpected status %+v", status)
	}
	if status.Journal != nil {
		t.Errorf("expected no journal status without a journal, got %+v", status.Journal)
	}
}

func TestApp_JournalRecordsAttempts(t *testing.T) {
	cfg := testConfig(t, true)
	a, _ := startApp(t, cfg, &stubToolkit{})

	if a.journal == nil {
		t.Fatal("expected journal to be open")
	}

	a.Open(types.OpenRequest{WindowID: "bar"})
	a.Open(types.OpenRequest{WindowID: "broken"})
	a.Registry().Wait()

	status, err := ipc.NewClient(a.SocketPath()).Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Journal == nil || !status.Journal.Healthy || status.Journal.MigrationVersion != 1 {
		t.Errorf("unexpected journal status %+v", status.Journal)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	recorder, err := journal.Open(context.Background(), database.DefaultConfig(cfg.Journal.Path), nil)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer recorder.Close()

	attempts, err := recorder.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}

	byStatus := map[types.AttemptStatus]int{}
	for _, attempt := range attempts {
		byStatus[attempt.Status]++
		if attempt.SessionID != a.SessionID() {
			t.Errorf("attempt session %q, want %q", attempt.SessionID, a.SessionID())
		}
	}
	if byStatus[types.AttemptRegistered] != 1 || byStatus[types.AttemptFailed] != 1 {
		t.Errorf("unexpected statuses %v", byStatus)
	}
}

func TestApp_JournalFailureDegrades(t *testing.T) {
	cfg := testConfig(t, true)

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Journal.Path = filepath.Join(blocker, "journal.db")

	a, logger := startApp(t, cfg, &stubToolkit{})

	if a.journal != nil {
		t.Error("journal should be disabled after a failed open")
	}
	if !logger.Contains("WARN", "Continuing without journal persistence") {
		t.Error("expected degraded-mode warning")
	}

	a.Open(types.OpenRequest{WindowID: "bar"})
	a.Registry().Wait()
	if a.Registry().Len() != 1 {
		t.Error("opens should still work without a journal")
	}
}

func TestApp_SecondHostRefused(t *testing.T) {
	first, _ := startApp(t, testConfig(t, false), &stubToolkit{})

	second, err := New(testConfig(t, false), testutils.NewRecordingLogger(),
		WithToolkit(&stubToolkit{}), WithSocketPath(first.SocketPath()))
	if err != nil {
		t.Fatal(err)
	}
	if err := second.Startup(context.Background()); !errors.Is(err, ipc.ErrHostRunning) {
		t.Fatalf("expected ErrHostRunning, got %v", err)
	}
}

func TestApp_ShutdownClosesWindows(t *testing.T) {
	tk := &stubToolkit{}
	a, _ := startApp(t, testConfig(t, false), tk)

	for range 3 {
		a.Open(types.OpenRequest{WindowID: "bar"})
	}
	a.Registry().Wait()

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	for _, h := range tk.Handles() {
		if !h.Closed() {
			t.Errorf("window %s was not closed", h.label)
		}
	}
	if _, err := os.Stat(a.SocketPath()); !os.IsNotExist(err) {
		t.Errorf("socket should be removed, stat err = %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown should be a no-op, got %v", err)
	}
}

type blockingToolkit struct {
	release chan struct{}

	mu     sync.Mutex
	handle *stubHandle
}

func (b *blockingToolkit) Construct(cfg toolkit.WindowConfig) (toolkit.Handle, error) {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handle = &stubHandle{label: cfg.Label}
	return b.handle, nil
}

func TestApp_ShutdownTimesOutOnStuckOpen(t *testing.T) {
	tk := &blockingToolkit{release: make(chan struct{})}

	a, _ := startApp(t, testConfig(t, false), tk)
	a.Open(types.OpenRequest{WindowID: "bar"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := a.Shutdown(ctx)
	if !hosterrors.IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}

	// the stuck open finishes after shutdown and must not leak its window
	close(tk.release)
	a.Registry().Wait()

	if n := a.Registry().Len(); n != 0 {
		t.Errorf("window registered after shutdown, Len() = %d", n)
	}
	tk.mu.Lock()
	h := tk.handle
	tk.mu.Unlock()
	if h == nil || !h.Closed() {
		t.Error("window opened after shutdown was not closed")
	}
}

func TestApp_ResolveWindow(t *testing.T) {
	cfg := testConfig(t, false)

	barDir := filepath.Join(cfg.WindowsDir, "bar")
	if err := os.Mkdir(barDir, 0o755); err != nil {
		t.Fatal(err)
	}
	clockDir := t.TempDir()
	cfg.Windows["clock"] = config.WindowDefinition{Dir: clockDir, Width: 200, Title: "Clock"}

	a, err := New(cfg, testutils.NewRecordingLogger(), WithSocketPath("/tmp/wh-test.sock"))
	if err != nil {
		t.Fatal(err)
	}

	base := toolkit.WindowConfig{Label: "1-bar", WindowID: "bar", Title: "Widgethost - bar", Width: 500, Height: 500}

	got, err := a.resolveWindow(base)
	if err != nil {
		t.Fatalf("resolve bar: %v", err)
	}
	if got.ContentDir != barDir || got.SocketPath != "/tmp/wh-test.sock" || got.Title != "Widgethost - bar" {
		t.Errorf("unexpected resolved bar config %+v", got)
	}

	base.WindowID = "clock"
	got, err = a.resolveWindow(base)
	if err != nil {
		t.Fatalf("resolve clock: %v", err)
	}
	if got.ContentDir != clockDir || got.Width != 200 || got.Height != 500 || got.Title != "Clock" {
		t.Errorf("unexpected resolved clock config %+v", got)
	}

	base.WindowID = "missing"
	if _, err := a.resolveWindow(base); !hosterrors.IsNotFound(err) {
		t.Errorf("expected not found for unknown window, got %v", err)
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(nil, nil); !hosterrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
