package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nomis52/pipeflow/config"
	"github.com/nomis52/pipeflow/logging"
	"github.com/nomis52/pipeflow/workflow"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config and every pipeline declared in it",
		Long: `Validate the config and every pipeline declared in it.

Each pipeline is instantiated and its workflow built, so bad links, clashing exports and
cycles between activated processes are reported along with config errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Close()

			var lines []string
			for _, name := range cfg.PipelineNames() {
				p, err := cfg.BuildPipeline(name, config.WithLogger(logger.Logger))
				if err != nil {
					return err
				}
				w, err := workflow.Build(p, workflow.WithLogger(logger.Logger))
				if err != nil {
					return err
				}
				marker := ""
				if name == cfg.Main {
					marker = " (main)"
				}
				lines = append(lines, fmt.Sprintf("  %s%s: %d processes, %d dependencies", name, marker, w.Len(), len(w.Edges())))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration validation successful: %s\n", path)
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
