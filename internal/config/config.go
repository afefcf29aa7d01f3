package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/infrastructure/logging"
)

// Environment variables that override the config file
const (
	EnvConfigPath     = "WIDGETHOST_CONFIG"
	EnvLogLevel       = "WIDGETHOST_LOG_LEVEL"
	EnvSocketPath     = "WIDGETHOST_SOCKET"
	EnvJournalEnabled = "WIDGETHOST_JOURNAL_ENABLED"
	EnvJournalPath    = "WIDGETHOST_JOURNAL_PATH"
	EnvWindowsDir     = "WIDGETHOST_WINDOWS_DIR"
)

// WindowDefinition configures one window id
type WindowDefinition struct {
	// Dir holds the window's web content (index.html); defaults to <windows_dir>/<id>
	Dir    string `yaml:"dir,omitempty"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
	Title  string `yaml:"title,omitempty"`
}

// JournalConfig configures the open attempt journal
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// IsEnabled returns the effective value, defaulting to true
func (j JournalConfig) IsEnabled() bool {
	if j.Enabled == nil {
		return true
	}
	return *j.Enabled
}

// Config is the widget host configuration
type Config struct {
	LogLevel   string                      `yaml:"log_level"`
	SocketPath string                      `yaml:"socket_path,omitempty"`
	WindowsDir string                      `yaml:"windows_dir,omitempty"`
	Journal    JournalConfig               `yaml:"journal,omitempty"`
	Windows    map[string]WindowDefinition `yaml:"windows,omitempty"`

	// Path is the file the config was loaded from, empty when defaults were used
	Path string `yaml:"-"`
}

// DefaultConfigPath returns ~/.config/widgethost/config.yaml, or $WIDGETHOST_CONFIG when set
func DefaultConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "widgethost", "config.yaml"), nil
}

func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel: "info",
		Windows:  make(map[string]WindowDefinition),
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		cfg.WindowsDir = filepath.Join(homeDir, ".config", "widgethost", "windows")
		cfg.Journal.Path = filepath.Join(homeDir, ".local", "share", "widgethost", "journal.db")
	}
	return cfg
}

// Load reads the config from the default location
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads path over the defaults; a missing file yields the defaults.
// Environment overrides are applied last.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, hosterrors.NewWithContext("load_config", err, hosterrors.ErrCodeValidation, map[string]string{
				"path": path,
			})
		}
		cfg.Path = path
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if cfg.Windows == nil {
		cfg.Windows = make(map[string]WindowDefinition)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvSocketPath); v != "" {
		c.SocketPath = v
	}
	if v := os.Getenv(EnvJournalPath); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv(EnvWindowsDir); v != "" {
		c.WindowsDir = v
	}
	if v := os.Getenv(EnvJournalEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return hosterrors.HandleValidationError("load_config", EnvJournalEnabled, v, "not a boolean")
		}
		c.Journal.Enabled = &enabled
	}
	return nil
}

func (c *Config) expandPaths() {
	c.SocketPath = expandHome(c.SocketPath)
	c.WindowsDir = expandHome(c.WindowsDir)
	c.Journal.Path = expandHome(c.Journal.Path)
	for id, def := range c.Windows {
		def.Dir = expandHome(def.Dir)
		c.Windows[id] = def
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return hosterrors.HandleValidationError("validate_config", "log_level", c.LogLevel, err.Error())
	}

	ids := make([]string, 0, len(c.Windows))
	for id := range c.Windows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		def := c.Windows[id]
		if strings.TrimSpace(id) == "" {
			return hosterrors.HandleValidationError("validate_config", "windows", id, "window id must not be empty")
		}
		if def.Width < 0 || def.Height < 0 {
			return hosterrors.HandleValidationError("validate_config", "windows."+id,
				fmt.Sprintf("%dx%d", def.Width, def.Height), "size must not be negative")
		}
	}

	if c.Journal.IsEnabled() && c.Journal.Path == "" {
		return hosterrors.HandleValidationError("validate_config", "journal.path", "", "required when the journal is enabled")
	}
	return nil
}

// Level returns the parsed log level
func (c *Config) Level() logging.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// Definition resolves the definition for a window id. The content directory
// must exist.
func (c *Config) Definition(windowID string) (WindowDefinition, error) {
	def, ok := c.Windows[windowID]
	if def.Dir == "" && c.WindowsDir != "" {
		def.Dir = filepath.Join(c.WindowsDir, windowID)
	}

	if def.Dir == "" {
		return def, hosterrors.HandleNotFound("resolve_window", "window definition", windowID)
	}

	info, err := os.Stat(def.Dir)
	if err != nil || !info.IsDir() {
		if ok {
			return def, hosterrors.NewWithContext("resolve_window", fmt.Errorf("content directory %s is not a directory", def.Dir),
				hosterrors.ErrCodeValidation, map[string]string{"window_id": windowID})
		}
		return def, hosterrors.HandleNotFound("resolve_window", "window definition", windowID)
	}
	return def, nil
}

// Marshal renders the effective config as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
