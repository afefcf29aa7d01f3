package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/toolkit"
	"widgethost/internal/windowhost"
)

// windowCmd is started by the host once per window; stdout carries protocol events only
var windowCmd = &cobra.Command{
	Use:    "window --config <json>",
	Short:  "Run one window (started by the host)",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runWindow,
}

func init() {
	rootCmd.AddCommand(windowCmd)
	windowCmd.Flags().String("config", "", "Window config as JSON")
}

func runWindow(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("config")
	if raw == "" {
		return fmt.Errorf("--config is required")
	}

	var cfg toolkit.WindowConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return fmt.Errorf("invalid window config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	return windowhost.Run(cfg, os.Stdin, os.Stdout, logging.NewLogger(level))
}
