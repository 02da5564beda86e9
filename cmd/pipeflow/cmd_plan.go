package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/nomis52/pipeflow/handoff"
	"github.com/nomis52/pipeflow/workflow"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the job/dependency document for the activated workflow",
		Long: `Build the workflow of the pipeline and print it as a handoff document: the jobs
to run, their dependencies, grouping by sub-pipeline, the next scheduled run and the
hidden pipeline parameters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return withSession(cmd, func(s *session) error {
				w, err := s.workflow()
				if err != nil {
					return err
				}
				triggers, err := s.cfg.Triggers()
				if err != nil {
					return err
				}
				doc := handoff.New(s.name, w,
					handoff.WithTriggers(triggers),
					handoff.WithSnapshot(s.pipeline.Snapshot()))
				s.logger.Info("workflow planned", "pipeline", s.name, "id", doc.ID, "fingerprint", doc.Fingerprint)
				return doc.Write(cmd.OutOrStdout(), format)
			})
		},
	}
	cmd.Flags().String("format", "json", "Output format: json or yaml")
	return cmd
}

func newDotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Print the activated workflow as a Graphviz digraph",
		RunE: func(cmd *cobra.Command, args []string) error {
			rankdir, _ := cmd.Flags().GetString("rankdir")
			return withSession(cmd, func(s *session) error {
				w, err := s.workflow()
				if err != nil {
					return err
				}
				return w.WriteDOT(cmd.OutOrStdout(),
					workflow.WithGraphName(s.name),
					workflow.WithRankDir(rankdir),
					workflow.WithLabels(groupLabels(w)))
			})
		},
	}
	cmd.Flags().String("rankdir", "LR", "Graph direction: TB, LR, BT or RL")
	return cmd
}

// groupLabels labels inlined sub-pipeline processes "blur (fx)" instead of "fx.blur".
func groupLabels(w *workflow.Workflow) map[string]string {
	labels := make(map[string]string)
	for _, name := range w.Nodes() {
		if i := strings.LastIndex(name, "."); i >= 0 {
			labels[name] = name[i+1:] + " (" + name[:i] + ")"
		}
	}
	return labels
}
