package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"widgethost/internal/config"
	"widgethost/internal/ipc"
	"widgethost/internal/output"
	"widgethost/internal/runtimepath"
	"widgethost/internal/testutils"
	"widgethost/internal/types"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	expected := []string{"open", "state", "list", "status", "history", "window", "config"}

	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range expected {
		if !found[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	if rootCmd.Version == "" {
		t.Error("root command version should be set")
	}
}

func TestWindowCommand_IsHidden(t *testing.T) {
	if !windowCmd.Hidden {
		t.Error("window command should be hidden")
	}
}

type cliBackend struct {
	mu     sync.Mutex
	opened []types.OpenRequest
	states map[string]types.WindowState
}

func (b *cliBackend) TryOpen(req types.OpenRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = append(b.opened, req)
}

func (b *cliBackend) Opened() []types.OpenRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.OpenRequest(nil), b.opened...)
}

func (b *cliBackend) StateByWindowLabel(label string) (types.WindowState, bool) {
	s, ok := b.states[label]
	return s, ok
}

func (b *cliBackend) States() []types.WindowState {
	out := make([]types.WindowState, 0, len(b.states))
	for _, s := range b.states {
		out = append(out, s)
	}
	return out
}

func (b *cliBackend) OpenCount() int64 { return int64(len(b.Opened())) }
func (b *cliBackend) Len() int         { return len(b.states) }

// withHost starts an IPC server and points the CLI config at it
func withHost(t *testing.T, backend ipc.Backend) {
	t.Helper()

	dir, err := os.MkdirTemp("", "wh")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	socket := filepath.Join(dir, "host.sock")
	srv := ipc.NewServer(socket, backend, testutils.NewRecordingLogger(), "cli-session")
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(srv.Stop)

	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv(config.EnvSocketPath, socket)
	t.Setenv(config.EnvJournalEnabled, "false")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestOpen_ForwardsToRunningHost(t *testing.T) {
	backend := &cliBackend{states: map[string]types.WindowState{}}
	withHost(t, backend)

	out, err := execute(t, "open", "bar", "label=main", "--format", "json")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	var result OpenResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid output %q: %v", out, err)
	}
	if !result.Forwarded || result.WindowID != "bar" {
		t.Errorf("unexpected result %+v", result)
	}

	opened := backend.Opened()
	if len(opened) != 1 || opened[0].ArgsMap()["label"] != "main" {
		t.Errorf("host received %+v", opened)
	}
}

func TestRunHost_ForwardsWhenAnotherHostOwnsSocket(t *testing.T) {
	backend := &cliBackend{states: map[string]types.WindowState{}}
	withHost(t, backend)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	socket, err := runtimepath.Resolve(cfg.SocketPath)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	var out bytes.Buffer
	saved := printer
	printer = output.NewPrinter(&out, output.FormatJSON)
	t.Cleanup(func() { printer = saved })

	req := types.OpenRequest{WindowID: "clock"}
	if err := runHost(context.Background(), cfg, testutils.NewRecordingLogger(), socket, req); err != nil {
		t.Fatalf("runHost failed: %v", err)
	}

	var result OpenResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("invalid output %q: %v", out.String(), err)
	}
	if !result.Forwarded || result.WindowID != "clock" {
		t.Errorf("unexpected result %+v", result)
	}
	if opened := backend.Opened(); len(opened) != 1 || opened[0].WindowID != "clock" {
		t.Errorf("host received %+v", opened)
	}
}

func TestOpen_MalformedTokenNeverReachesHost(t *testing.T) {
	backend := &cliBackend{states: map[string]types.WindowState{}}
	withHost(t, backend)

	_, err := execute(t, "open", "bar", "novalue", "--format", "json")
	if err == nil || !strings.Contains(err.Error(), "expected KEY=VALUE") {
		t.Fatalf("expected arg parse error, got %v", err)
	}
	if len(backend.Opened()) != 0 {
		t.Error("malformed open must not reach the host")
	}
}

func TestState_PrintsRecord(t *testing.T) {
	backend := &cliBackend{states: map[string]types.WindowState{
		"1-bar": {WindowID: "bar", WindowLabel: "1-bar", Args: map[string]string{"label": "main"}, Env: map[string]string{}},
	}}
	withHost(t, backend)

	out, err := execute(t, "state", "1-bar", "--format", "json")
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}

	var state types.WindowState
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		t.Fatalf("invalid output %q: %v", out, err)
	}
	if state.WindowLabel != "1-bar" || state.Args["label"] != "main" {
		t.Errorf("unexpected state %+v", state)
	}

	if _, err := execute(t, "state", "9-bar", "--format", "json"); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestList_PrintsYAML(t *testing.T) {
	backend := &cliBackend{states: map[string]types.WindowState{
		"1-bar": {WindowID: "bar", WindowLabel: "1-bar"},
	}}
	withHost(t, backend)

	out, err := execute(t, "list", "--format", "yaml")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "windowLabel: 1-bar") {
		t.Errorf("unexpected YAML output %q", out)
	}
}

func TestHistory_DisabledJournal(t *testing.T) {
	withHost(t, &cliBackend{states: map[string]types.WindowState{}})

	if _, err := execute(t, "history", "--format", "json"); err == nil {
		t.Error("expected error when the journal is disabled")
	}
}
