package config

import (
	"os"
	"path/filepath"
	"testing"

	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/infrastructure/logging"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvConfigPath, EnvLogLevel, EnvSocketPath, EnvJournalEnabled, EnvJournalPath, EnvWindowsDir} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("Path should be empty for defaults, got %q", cfg.Path)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if !cfg.Journal.IsEnabled() {
		t.Error("journal should be enabled by default")
	}
	if cfg.Windows == nil {
		t.Error("Windows should never be nil")
	}
}

func TestLoadFromPath_ParsesFile(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
log_level: debug
socket_path: ~/widgethost.sock
journal:
  enabled: false
windows:
  bar:
    dir: /opt/widgets/bar
    width: 1920
    height: 32
    title: Status bar
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.Level() != logging.LevelDebug {
		t.Errorf("Level() = %v, want debug", cfg.Level())
	}
	if cfg.SocketPath != filepath.Join(home, "widgethost.sock") {
		t.Errorf("SocketPath = %q, want expanded home", cfg.SocketPath)
	}
	if cfg.Journal.IsEnabled() {
		t.Error("journal should be disabled")
	}
	bar := cfg.Windows["bar"]
	if bar.Dir != "/opt/widgets/bar" || bar.Width != 1920 || bar.Height != 32 || bar.Title != "Status bar" {
		t.Errorf("unexpected bar definition: %+v", bar)
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, "log_level: debug\n")

	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvSocketPath, "/tmp/override.sock")
	t.Setenv(EnvJournalEnabled, "false")
	t.Setenv(EnvWindowsDir, "/srv/windows")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.SocketPath != "/tmp/override.sock" {
		t.Errorf("SocketPath = %q", cfg.SocketPath)
	}
	if cfg.Journal.IsEnabled() {
		t.Error("journal should be disabled by env")
	}
	if cfg.WindowsDir != "/srv/windows" {
		t.Errorf("WindowsDir = %q", cfg.WindowsDir)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"bad yaml", "log_level: [unclosed", nil},
		{"bad level", "log_level: loud\n", nil},
		{"negative size", "windows:\n  bar:\n    width: -1\n", nil},
		{"bad journal env", "", map[string]string{EnvJournalEnabled: "maybe"}},
		{"journal without path", "journal:\n  enabled: true\n", map[string]string{"HOME": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HOME", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromPath(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !hosterrors.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath failed: %v", err)
	}
	if want := filepath.Join(home, ".config", "widgethost", "config.yaml"); got != want {
		t.Errorf("DefaultConfigPath() = %q, want %q", got, want)
	}

	t.Setenv(EnvConfigPath, "/etc/widgethost.yaml")
	if got, _ := DefaultConfigPath(); got != "/etc/widgethost.yaml" {
		t.Errorf("expected env path, got %q", got)
	}
}

func TestDefinition(t *testing.T) {
	windowsDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(windowsDir, "bar"), 0755); err != nil {
		t.Fatal(err)
	}
	explicit := t.TempDir()

	cfg := &Config{
		WindowsDir: windowsDir,
		Windows: map[string]WindowDefinition{
			"clock":  {Dir: explicit, Width: 200},
			"broken": {Dir: filepath.Join(explicit, "missing")},
		},
	}

	def, err := cfg.Definition("bar")
	if err != nil {
		t.Fatalf("Definition(bar) failed: %v", err)
	}
	if def.Dir != filepath.Join(windowsDir, "bar") {
		t.Errorf("bar Dir = %q", def.Dir)
	}

	def, err = cfg.Definition("clock")
	if err != nil {
		t.Fatalf("Definition(clock) failed: %v", err)
	}
	if def.Dir != explicit || def.Width != 200 {
		t.Errorf("unexpected clock definition: %+v", def)
	}

	if _, err := cfg.Definition("nope"); !hosterrors.IsNotFound(err) {
		t.Errorf("expected not found for unknown id, got %v", err)
	}
	if _, err := cfg.Definition("broken"); !hosterrors.IsValidation(err) {
		t.Errorf("expected validation error for missing dir, got %v", err)
	}
}
