package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nomis52/pipeflow/schedule"
	"github.com/nomis52/pipeflow/scheduler"
	"github.com/nomis52/pipeflow/workflow"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dry-run the activated workflow through the scheduler",
		Long: `Dry-run the activated workflow. Every process is started as soon as all of its
predecessors completed and reports what it would run; nothing is executed.

--fail makes the named processes fail so the skipping of their dependents can be seen.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			failing, _ := cmd.Flags().GetStringArray("fail")
			return withSession(cmd, func(s *session) error {
				return dryRun(cmd.Context(), s, cmd.OutOrStdout(), concurrency, failing)
			})
		},
	}
	cmd.Flags().Int("concurrency", 0, "Maximum number of processes running at once (0: unbounded)")
	cmd.Flags().StringArray("fail", nil, "Make the named process fail (repeatable)")
	return cmd
}

// dryRun builds the session's workflow and runs it with a RunFunc that only reports.
func dryRun(ctx context.Context, s *session, out io.Writer, concurrency int, failing []string) error {
	w, err := s.workflow()
	if err != nil {
		return err
	}

	fail := make(map[string]bool, len(failing))
	for _, name := range failing {
		fail[name] = true
	}

	var mu sync.Mutex
	sched := scheduler.New(scheduler.WithLogger(s.logger.Logger), scheduler.WithConcurrency(concurrency))
	runErr := sched.Run(ctx, w, func(_ context.Context, n *workflow.Node) error {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "run %s%s\n", n.Name, describePorts(n))
		if fail[n.Name] {
			return fmt.Errorf("failure requested with --fail")
		}
		return nil
	})

	counts := make([]string, 0)
	for _, c := range sched.Summary() {
		counts = append(counts, fmt.Sprintf("%s=%d", c.State, c.Count))
	}
	fmt.Fprintf(out, "%s: %s\n", s.name, strings.Join(counts, " "))
	return runErr
}

func describePorts(n *workflow.Node) string {
	if n.Process == nil {
		return ""
	}
	var ins, outs []string
	for _, spec := range n.Process.Ports() {
		if spec.Output {
			outs = append(outs, spec.Name)
		} else {
			ins = append(ins, spec.Name)
		}
	}
	return fmt.Sprintf(" (in: %s; out: %s)", strings.Join(ins, ","), strings.Join(outs, ","))
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Dry-run the workflow on the configured schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				triggers, err := s.cfg.Triggers()
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				out := cmd.OutOrStdout()
				var done []<-chan struct{}
				for _, t := range triggers {
					if !containsName(t.Pipelines, s.name) {
						continue
					}
					job := schedule.NewJob(s.name, t.Schedule, func(ctx context.Context) error {
						return dryRun(ctx, s, out, 0, nil)
					}, s.logger.Logger)
					fmt.Fprintf(out, "%s: schedule %q, next run %s\n", s.name, t.Schedule, job.NextRun().Format("2006-01-02 15:04:05 MST"))
					done = append(done, job.Start(ctx))
				}
				if len(done) == 0 {
					return fmt.Errorf("no schedule configured for pipeline %q", s.name)
				}
				for _, d := range done {
					<-d
				}
				return nil
			})
		},
	}
}

func containsName(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
