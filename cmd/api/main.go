// Command stationplan serves the schedule API and solves requests offline.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "stationplan",
		Short:        "Station network task scheduler",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")

	serve := newServeCmd(&cfgPath)
	root.AddCommand(serve, newSolveCmd(&cfgPath))
	// plain `stationplan` starts the server
	root.RunE = serve.RunE
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
