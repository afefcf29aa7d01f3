// Package app wires the widget host together: journal, toolkit, registry and IPC server.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"widgethost/internal/config"
	"widgethost/internal/database"
	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/ipc"
	"widgethost/internal/journal"
	"widgethost/internal/registry"
	"widgethost/internal/runtimepath"
	"widgethost/internal/toolkit"
	"widgethost/internal/types"
)

const (
	journalStartupTimeout = 10 * time.Second
	shutdownTimeout       = 30 * time.Second
)

// App is the long-running host process
type App struct {
	cfg        *config.Config
	logger     logging.Logger
	socketPath string

	toolkit  toolkit.Toolkit
	journal  *journal.Recorder
	registry *registry.Registry
	server   *ipc.Server

	sessionID string
	started   bool
}

// Option configures an App
type Option func(*App)

// WithToolkit replaces the child-process toolkit
func WithToolkit(tk toolkit.Toolkit) Option {
	return func(a *App) {
		a.toolkit = tk
	}
}

// WithSocketPath overrides the socket path from the config
func WithSocketPath(path string) Option {
	return func(a *App) {
		a.socketPath = path
	}
}

// New creates an App; nothing is started until Startup
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, hosterrors.HandleValidationError("new_app", "config", "nil", "config is required")
	}
	if logger == nil {
		logger = logging.NewLogger(cfg.Level())
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.socketPath == "" {
		path, err := runtimepath.Resolve(cfg.SocketPath)
		if err != nil {
			return nil, err
		}
		a.socketPath = path
	}
	return a, nil
}

// Startup opens the journal, builds the registry and starts serving IPC.
// A journal failure only disables persistence. ipc.ErrHostRunning means
// another host owns the socket.
func (a *App) Startup(ctx context.Context) error {
	if a.started {
		return nil
	}
	hosterrors.InstallRetryLogger(a.logger)

	if a.cfg.Journal.IsEnabled() {
		if err := a.initializeJournal(ctx); err != nil {
			logging.LogError(a.logger, "Journal initialization failed", err, "startup", map[string]interface{}{
				"journal_path": a.cfg.Journal.Path,
			})
			a.logger.Warn("Continuing without journal persistence")
		}
	}

	a.sessionID = uuid.NewString()
	if a.journal != nil {
		a.sessionID = a.journal.SessionID()
	}

	if a.toolkit == nil {
		tk, err := toolkit.NewProcessToolkit(toolkit.ProcessOptions{
			Resolve: a.resolveWindow,
			Logger:  a.logger,
		})
		if err != nil {
			a.closeJournal()
			return err
		}
		a.toolkit = tk
	}

	var (
		opts       []registry.Option
		serverOpts []ipc.ServerOption
	)
	if a.journal != nil {
		opts = append(opts, registry.WithRecorder(a.journal))
		serverOpts = append(serverOpts, ipc.WithJournal(a.journal))
	}
	a.registry = registry.New(a.toolkit, a.logger, opts...)

	a.server = ipc.NewServer(a.socketPath, a.registry, a.logger, a.sessionID, serverOpts...)
	if err := a.server.Start(); err != nil {
		a.closeJournal()
		return err
	}

	a.started = true
	a.logger.Info("Widget host started",
		"socket", a.socketPath,
		"session_id", a.sessionID,
		"journal", a.journal != nil,
	)
	return nil
}

func (a *App) initializeJournal(ctx context.Context) error {
	dbConfig := database.DefaultConfig(a.cfg.Journal.Path)
	dbConfig.LoadFromEnvironment()

	openCtx, cancel := context.WithTimeout(ctx, journalStartupTimeout)
	defer cancel()

	recorder, err := journal.Open(openCtx, dbConfig, a.logger)
	if err != nil {
		return err
	}
	a.journal = recorder
	return nil
}

// resolveWindow fills a window config from the window's definition
func (a *App) resolveWindow(cfg toolkit.WindowConfig) (toolkit.WindowConfig, error) {
	def, err := a.cfg.Definition(cfg.WindowID)
	if err != nil {
		return cfg, err
	}

	cfg.ContentDir = def.Dir
	if def.Width > 0 {
		cfg.Width = def.Width
	}
	if def.Height > 0 {
		cfg.Height = def.Height
	}
	if def.Title != "" {
		cfg.Title = def.Title
	}
	cfg.SocketPath = a.socketPath
	cfg.LogLevel = a.cfg.LogLevel
	return cfg, nil
}

// Open asks the registry to open a window and returns immediately
func (a *App) Open(req types.OpenRequest) {
	a.registry.TryOpen(req)
}

// Registry returns the window registry; nil before Startup
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// SessionID identifies this host run in the journal
func (a *App) SessionID() string {
	return a.sessionID
}

// SocketPath returns the socket the host listens on
func (a *App) SocketPath() string {
	return a.socketPath
}

// Shutdown stops IPC, waits for in-flight opens and closes every window and the journal
func (a *App) Shutdown(ctx context.Context) error {
	if !a.started {
		return nil
	}
	a.started = false
	a.logger.Info("Starting host shutdown sequence")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	a.server.Stop()

	var errs []error
	if err := a.waitForOpens(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := a.registry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close windows: %w", err))
	}
	if err := a.closeJournal(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		logging.LogError(a.logger, "Host shutdown incomplete", err, "shutdown", nil)
		return err
	}
	a.logger.Info("Host shutdown completed")
	return nil
}

// waitForOpens gives in-flight opens until ctx is done; window construction has no timeout of its own
func (a *App) waitForOpens(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.registry.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return hosterrors.HandleTimeoutError("shutdown", "waiting for in-flight opens")
	}
}

func (a *App) closeJournal() error {
	if a.journal == nil {
		return nil
	}
	err := a.journal.Close()
	a.journal = nil
	if err != nil {
		return hosterrors.WrapWithContext("shutdown", err, map[string]string{
			"operation": "close_journal",
		})
	}
	return nil
}
