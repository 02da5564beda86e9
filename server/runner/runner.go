// Package runner manages pipeline runs for the pipeflow server.
//
// The runner handles:
//   - Starting runs in the background
//   - Preventing concurrent runs
//   - Tracking the current run's per-node state and captured logs
//   - Maintaining history of completed runs
//
// Each run builds the workflow from the pipeline as it is at that moment, so switch
// selections and enable flags changed between runs take effect on the next run.
//
// # Example
//
//	r := runner.New(logger, provider)
//
//	if err := r.Run("manual"); err != nil {
//	    if errors.Is(err, runner.ErrRunInProgress) {
//	        // Handle concurrent run attempt
//	    }
//	}
//
//	status := r.Status()
//	for _, n := range status.Nodes {
//	    fmt.Printf("%s [%s]\n", n.Node, n.State)
//	}
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nomis52/pipeflow/logging"
	"github.com/nomis52/pipeflow/pipeline"
	"github.com/nomis52/pipeflow/scheduler"
	"github.com/nomis52/pipeflow/workflow"
)

var (
	// ErrRunInProgress is returned when attempting to start a run while one is already running.
	ErrRunInProgress = errors.New("pipeline run already in progress")

	// ErrUnknownRun is returned by Nodes for an ID that is not in the history.
	ErrUnknownRun = errors.New("unknown run")
)

// PipelineProvider provides the pipeline to run.
type PipelineProvider interface {
	Pipeline() *pipeline.Pipeline
}

// Dispatcher hands one workflow node to whatever executes it.
type Dispatcher func(ctx context.Context, d Dispatch) error

// Runner manages pipeline run execution.
type Runner struct {
	logger      *slog.Logger
	provider    PipelineProvider
	store       StateStore
	dispatch    Dispatcher
	concurrency int

	mu           sync.Mutex
	runStatus    RunStatus
	scheduler    *scheduler.Scheduler  // current or last run's scheduler
	logCollector *logging.LogCollector // captures node logs during the run
	reporter     *StatusReporter       // current node status messages
	wg           sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithStateStore configures the runner to use the provided store for persistence.
func WithStateStore(store StateStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithDispatcher sets the function each node is handed to. The default only logs the
// node's ports.
func WithDispatcher(d Dispatcher) Option {
	return func(r *Runner) {
		r.dispatch = d
	}
}

// WithConcurrency bounds the number of nodes dispatched at once.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		r.concurrency = n
	}
}

// New creates a new Runner.
func New(logger *slog.Logger, provider PipelineProvider, opts ...Option) *Runner {
	r := &Runner{
		logger:    logger.With("component", "runner"),
		provider:  provider,
		store:     NewMemoryStore(),
		dispatch:  LogDispatcher,
		runStatus: RunStatus{RunSummary: RunSummary{State: RunStateIdle}},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LogDispatcher reports the node and its ports without executing anything.
func LogDispatcher(_ context.Context, d Dispatch) error {
	var ins, outs []string
	if d.Node.Process != nil {
		for _, spec := range d.Node.Process.Ports() {
			if spec.Output {
				outs = append(outs, spec.Name)
			} else {
				ins = append(ins, spec.Name)
			}
		}
	}
	d.Logger.Info("dispatching node", "node", d.Node.Name, "inputs", strings.Join(ins, ","), "outputs", strings.Join(outs, ","))
	d.SetStatus("dispatched")
	return nil
}

// Run starts a run in the background. trigger is recorded in the run's summary.
// Returns ErrRunInProgress if a run is already in progress.
func (r *Runner) Run(trigger string) error {
	if !r.tryStart(trigger) {
		return ErrRunInProgress
	}

	r.logger.Info("starting pipeline run", "trigger", trigger)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.executeRun(context.Background())
		r.finish(err)
	}()
	return nil
}

// RunAndWait starts a run and blocks until it has finished. It is what scheduled jobs
// call, so a schedule firing during a manual run is reported rather than queued.
func (r *Runner) RunAndWait(ctx context.Context, trigger string) error {
	if err := r.Run(trigger); err != nil {
		return err
	}
	r.Wait()
	if msg := r.Status().Error; msg != "" {
		return errors.New(msg)
	}
	return ctx.Err()
}

// Wait blocks until no run is in progress.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Status returns the current run status. While a run is in progress the node executions
// are built live from the scheduler and the captured logs.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.runStatus
	if status.State == RunStateRunning && r.scheduler != nil {
		status.Nodes = r.buildNodeExecutions()
	}
	return status
}

// IsRunning returns true if a run is in progress.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runStatus.State == RunStateRunning
}

// History returns the summaries of completed runs, most recent first.
func (r *Runner) History() []RunSummary {
	return r.store.History()
}

// Nodes returns the node executions of a completed run.
func (r *Runner) Nodes(id string) ([]NodeExecution, error) {
	for _, s := range r.store.History() {
		if s.ID == id {
			return r.store.Nodes(id), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRun, id)
}

// tryStart attempts to transition from idle to running.
func (r *Runner) tryStart(trigger string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runStatus.State == RunStateRunning {
		return false
	}

	now := time.Now()
	r.runStatus = RunStatus{RunSummary: RunSummary{
		State:     RunStateRunning,
		Trigger:   trigger,
		StartedAt: &now,
	}}
	r.scheduler = nil
	r.logCollector = nil
	r.reporter = nil
	return true
}

// finish transitions from running to idle and records the result.
func (r *Runner) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	endTime := time.Now()
	duration := endTime.Sub(*r.runStatus.StartedAt)

	r.runStatus.State = RunStateIdle
	r.runStatus.EndedAt = &endTime
	r.runStatus.ID = r.runStatus.CalculateID()

	if err != nil {
		r.runStatus.Error = err.Error()
		r.logger.Error("pipeline run failed", "error", err, "duration", duration)
	} else {
		r.runStatus.Error = ""
		r.logger.Info("pipeline run completed", "duration", duration)
	}

	if r.scheduler != nil {
		r.runStatus.Nodes = r.buildNodeExecutions()
	}

	if err := r.store.Save(r.runStatus.RunSummary, r.runStatus.Nodes); err != nil {
		r.logger.Error("failed to save run to store", "error", err)
	}
}

// buildNodeExecutions combines scheduler results and captured logs. Called with mu held.
func (r *Runner) buildNodeExecutions() []NodeExecution {
	results := r.scheduler.Results()

	executions := make([]NodeExecution, 0, len(results))
	for name, res := range results {
		exec := NodeExecution{
			Node:   name,
			State:  res.State.String(),
			Status: r.reporter.Status(name),
			Logs:   r.logCollector.Logs(name),
		}
		if res.Error != nil {
			exec.Error = res.Error.Error()
		}
		executions = append(executions, exec)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].Node < executions[j].Node
	})
	return executions
}

func (r *Runner) executeRun(ctx context.Context) error {
	p := r.provider.Pipeline()
	if p == nil {
		return errors.New("no pipeline available")
	}

	w, err := workflow.Build(p, workflow.WithLogger(r.logger))
	if err != nil {
		return fmt.Errorf("failed to build workflow: %w", err)
	}

	logCollector := logging.NewLogCollector()
	reporter := NewStatusReporter()
	hook := logging.NewCapturingLoggerHook(logCollector)
	sched := scheduler.New(scheduler.WithLogger(r.logger), scheduler.WithConcurrency(r.concurrency))

	// Store references for live status
	r.mu.Lock()
	r.runStatus.Pipeline = p.Name()
	r.runStatus.Fingerprint = w.Fingerprint()
	r.scheduler = sched
	r.logCollector = logCollector
	r.reporter = reporter
	r.mu.Unlock()

	err = sched.Run(ctx, w, func(ctx context.Context, n *workflow.Node) error {
		return r.dispatch(ctx, Dispatch{
			Node:     n,
			Logger:   hook.LoggerForScope(r.logger, n.Name),
			reporter: reporter,
		})
	})
	if err != nil {
		return fmt.Errorf("workflow execution failed: %w", err)
	}
	return nil
}
