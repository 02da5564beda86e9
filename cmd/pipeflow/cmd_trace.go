package main

import (
	"github.com/spf13/cobra"

	"github.com/nomis52/pipeflow/config"
	"github.com/nomis52/pipeflow/logging"
	"github.com/nomis52/pipeflow/workflow"
)

func newTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace",
		Short: "Print the engine's log records for building the pipeline and its workflow",
		Long: `Build the pipeline and its workflow and print every log record they produced,
grouped by pipeline instance, whatever the configured log level. Useful to see why a node
was deactivated or pruned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			collector := logging.NewLogCollector()
			hook := logging.NewCapturingLoggerHook(collector)
			return withSession(cmd, func(s *session) error {
				logger := hook.LoggerForScope(s.logger.Logger, s.name+"/workflow")
				if _, err := s.workflow(workflow.WithLogger(logger)); err != nil {
					// The failed build is part of the trace.
					s.logger.Warn("workflow build failed", "error", err)
				}
				_, err := collector.WriteTo(cmd.OutOrStdout())
				return err
			}, config.WithLoggerHook(hook))
		},
	}
}
