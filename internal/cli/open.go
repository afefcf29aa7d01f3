package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"widgethost/internal/app"
	"widgethost/internal/config"
	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/ipc"
	"widgethost/internal/runtimepath"
	"widgethost/internal/types"
)

// OpenResult is printed when an open is handed to an already running host
type OpenResult struct {
	Forwarded bool   `yaml:"forwarded" json:"forwarded"`
	WindowID  string `yaml:"windowId"  json:"windowId"`
	Socket    string `yaml:"socket"    json:"socket"`
}

var openCmd = &cobra.Command{
	Use:   "open <window-id> [KEY=VALUE...]",
	Short: "Open a window definition",
	Long: `Open a window definition with optional KEY=VALUE launch arguments.

If a host is already running the request is handed to it and the command exits.
Otherwise this process becomes the host and keeps running until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().StringArrayP("args", "a", nil, "Launch argument as KEY=VALUE (repeatable)")
}

func runOpen(cmd *cobra.Command, args []string) error {
	flagged, _ := cmd.Flags().GetStringArray("args")

	// malformed tokens are rejected before any host is contacted
	req, err := buildOpenRequest(args[0], args[1:], flagged)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	socket, err := runtimepath.Resolve(cfg.SocketPath)
	if err != nil {
		return err
	}

	client := ipc.NewClient(socket)
	if client.Ping() == nil {
		return forward(client, socket, req)
	}

	return runHost(cmd.Context(), cfg, logger, socket, req)
}

func forward(client *ipc.Client, socket string, req types.OpenRequest) error {
	if err := client.Open(req); err != nil {
		return err
	}
	return printer.Print(OpenResult{Forwarded: true, WindowID: req.WindowID, Socket: socket})
}

// runHost serves as the widget host until SIGINT or SIGTERM
func runHost(parent context.Context, cfg *config.Config, logger logging.Logger, socket string, req types.OpenRequest) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, err := app.New(cfg, logger, app.WithSocketPath(socket))
	if err != nil {
		return err
	}

	if err := host.Startup(ctx); err != nil {
		// another host won the race for the socket
		if errors.Is(err, ipc.ErrHostRunning) {
			client := ipc.NewClient(socket)
			if err := client.WaitReady(ctx); err != nil {
				return err
			}
			return forward(client, socket, req)
		}
		return err
	}

	host.Open(req)

	<-ctx.Done()
	logger.Info("Received shutdown signal")
	return host.Shutdown(context.Background())
}
