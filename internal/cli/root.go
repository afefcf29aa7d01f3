// Package cli implements the widgethost command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"widgethost/internal/config"
	"widgethost/internal/infrastructure/logging"
	"widgethost/internal/output"
	"widgethost/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "widgethost",
	Short:         "Open transparent widget windows",
	Long:          "widgethost opens named window definitions as frameless, transparent overlay windows and tracks them in a single host process.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// printer is set by the root command before any subcommand runs
var printer *output.Printer

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/widgethost/config.yaml)")
	rootCmd.PersistentFlags().String("format", "", "Output format: yaml, json (default json when piped)")
	rootCmd.PersistentFlags().Bool("pretty", false, "Indent JSON output")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		formatFlag, _ := rootCmd.PersistentFlags().GetString("format")
		format, err := output.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		pretty, _ := rootCmd.PersistentFlags().GetBool("pretty")

		printer = output.NewPrinter(cmd.OutOrStdout(), format)
		printer.Pretty = pretty
		return nil
	}
}

// loadConfig reads --config, or the default location when the flag is empty
func loadConfig() (*config.Config, error) {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	if path == "" {
		return config.Load()
	}
	return config.LoadFromPath(path)
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(cfg.Level())
}
