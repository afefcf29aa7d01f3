package cli

import (
	"github.com/spf13/cobra"

	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/ipc"
	"widgethost/internal/runtimepath"
)

var stateCmd = &cobra.Command{
	Use:   "state <window-label>",
	Short: "Show the record of an open window",
	Args:  cobra.ExactArgs(1),
	RunE:  runState,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List open windows",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running host's status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
}

func hostClient() (*ipc.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	socket, err := runtimepath.Resolve(cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	return ipc.NewClient(socket), nil
}

func runState(cmd *cobra.Command, args []string) error {
	client, err := hostClient()
	if err != nil {
		return err
	}

	state, ok, err := client.StateByWindowLabel(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return hosterrors.HandleNotFound("state", "window", args[0])
	}
	return printer.Print(state)
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := hostClient()
	if err != nil {
		return err
	}

	states, err := client.ListStates()
	if err != nil {
		return err
	}
	return printer.Print(states)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := hostClient()
	if err != nil {
		return err
	}

	status, err := client.Status()
	if err != nil {
		return err
	}
	return printer.Print(status)
}
