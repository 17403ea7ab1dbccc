package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:          "cuttracker",
		Short:        "Shop-floor cutting job tracker",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default $CUTTRACKER_CONFIG)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newWatchCmd())
	return cmd
}
