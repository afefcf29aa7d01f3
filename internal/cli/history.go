package cli

import (
	"github.com/spf13/cobra"

	"widgethost/internal/database"
	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent open attempts from the journal",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of attempts to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Journal.IsEnabled() {
		return hosterrors.HandleValidationError("history", "journal.enabled", "false", "the journal is disabled")
	}

	dbConfig := database.DefaultConfig(cfg.Journal.Path)
	dbConfig.LoadFromEnvironment()

	recorder, err := journal.Open(cmd.Context(), dbConfig, newLogger(cfg))
	if err != nil {
		return err
	}
	defer recorder.Close()

	attempts, err := recorder.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return printer.Print(attempts)
}
