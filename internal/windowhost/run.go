package windowhost

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wailsapp/wails/v2"
	wailslogger "github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/platform"
	"widgethost/internal/toolkit"
)

// wailsRuntime forwards to the Wails runtime package
type wailsRuntime struct{}

func (wailsRuntime) ExecJS(ctx context.Context, script string) { runtime.WindowExecJS(ctx, script) }
func (wailsRuntime) Show(ctx context.Context)                  { runtime.WindowShow(ctx) }
func (wailsRuntime) Quit(ctx context.Context)                  { runtime.Quit(ctx) }

// Run shows the window described by cfg and blocks until the host closes in.
// Protocol events are written to out, so nothing else may write there.
func Run(cfg toolkit.WindowConfig, in io.Reader, out io.Writer, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	w := newWindow(cfg, in, out, platform.NewWindowAPI(), wailsRuntime{}, logger)

	if err := validateContentDir(cfg.ContentDir); err != nil {
		w.fail(err)
		return err
	}

	logger.Info("Starting window", "window_label", cfg.Label, "content_dir", cfg.ContentDir, "pid", w.pid)

	err := wails.Run(appOptions(cfg, w, NewBridge(cfg.Label, cfg.SocketPath), logger))
	if err != nil {
		err = fmt.Errorf("window %s: %w", cfg.Label, err)
		w.fail(err)
		return err
	}

	// the runtime can exit on its own, e.g. when the window manager closes the window
	w.fail(fmt.Errorf("window %s exited before it was ready", cfg.Label))
	return nil
}

func validateContentDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("window content directory is not set")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("window content directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("window content path %s is not a directory", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		return fmt.Errorf("window content directory %s has no index.html: %w", dir, err)
	}
	return nil
}

// appOptions maps a window config onto Wails options. Wails always focuses
// a window when it is shown, so cfg.Focused has no effect.
func appOptions(cfg toolkit.WindowConfig, w *Window, bridge *Bridge, logger logging.Logger) *options.App {
	background := &options.RGBA{R: 0, G: 0, B: 0, A: 255}
	if cfg.Transparent {
		background = &options.RGBA{R: 0, G: 0, B: 0, A: 0}
	}

	return &options.App{
		Title:            cfg.Title,
		Width:            cfg.Width,
		Height:           cfg.Height,
		DisableResize:    !cfg.Resizable,
		Frameless:        !cfg.Decorations,
		StartHidden:      true,
		BackgroundColour: background,
		AssetServer: &assetserver.Options{
			Assets: os.DirFS(cfg.ContentDir),
		},
		Logger:           logging.NewWailsLoggerAdapter(logger, cfg.Label),
		LogLevel:         wailsLogLevel(cfg.LogLevel),
		OnStartup:        w.startup,
		OnDomReady:       w.domReady,
		OnShutdown:       func(ctx context.Context) { logger.Debug("Window runtime stopped", "window_label", cfg.Label) },
		WindowStartState: options.Normal,
		Bind: []interface{}{
			bridge,
		},
		Windows: &windows.Options{
			WebviewIsTransparent:              cfg.Transparent,
			WindowIsTranslucent:               cfg.Transparent,
			DisableWindowIcon:                 true,
			DisableFramelessWindowDecorations: !cfg.Shadow,
			ZoomFactor:                        1.0,
		},
		Mac: &mac.Options{
			TitleBar:             mac.TitleBarHidden(),
			WebviewIsTransparent: cfg.Transparent,
			WindowIsTranslucent:  cfg.Transparent,
		},
		Linux: &linux.Options{
			WindowIsTranslucent: cfg.Transparent,
			ProgramName:         "widgethost",
		},
	}
}

func wailsLogLevel(level string) wailslogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return wailslogger.DEBUG
	case "warn", "warning":
		return wailslogger.WARNING
	case "error":
		return wailslogger.ERROR
	default:
		return wailslogger.INFO
	}
}
