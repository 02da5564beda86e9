package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pipeflow",
		Short: "Pipeline activation and workflow planning",
		Long: `pipeflow loads pipeline declarations, works out which nodes are activated for
the current enable flags and switch selections, and turns the activated part into a
transitively reduced workflow of processes.

Examples:
  pipeflow -c pipeflow.yaml status
  pipeflow -c pipeflow.yaml --select mode=sharpen plan --format yaml
  pipeflow -c pipeflow.yaml --disable fx.blur dot | dot -Tsvg > render.svg
  pipeflow -c pipeflow.yaml serve --listen :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to config file")
	flags.String("pipeline", "", "Pipeline to use (default: the config's main pipeline)")
	flags.StringArray("disable", nil, "Disable a node, e.g. fx.blur (repeatable)")
	flags.StringArray("select", nil, "Select a switch option as switch=option, e.g. mode=fx (repeatable)")
	flags.Bool("metrics", false, "Print the collected metrics to stderr when done")
	flags.String("push-url", "", "Push the collected metrics to this remote write endpoint when done")

	rootCmd.AddCommand(
		newVersionCmd(),
		newValidateCmd(),
		newStatusCmd(),
		newPlanCmd(),
		newDotCmd(),
		newRunCmd(),
		newTraceCmd(),
		newWatchCmd(),
		newServeCmd(),
	)
	return rootCmd
}
