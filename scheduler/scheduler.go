// Package scheduler runs the nodes of a workflow, each as soon as all of its predecessors
// have completed successfully.
//
// Every node runs in its own goroutine and waits on the completion channels of its
// predecessors. A node whose predecessor failed or was skipped is Skipped itself, as is
// every node still waiting when the context is cancelled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nomis52/pipeflow/workflow"
)

// RunFunc executes one workflow node.
type RunFunc func(ctx context.Context, node *workflow.Node) error

// Scheduler executes workflows. A Scheduler keeps the results of its last Run.
type Scheduler struct {
	logger      *slog.Logger
	concurrency int

	results map[string]Result
	mu      sync.RWMutex
}

// Option is a function that configures a Scheduler
type Option func(*Scheduler)

// WithLogger sets a custom logger for the scheduler
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger.With("component", "scheduler")
	}
}

// WithConcurrency bounds how many nodes run at once. Zero or less means unbounded.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		s.concurrency = n
	}
}

// New creates a scheduler
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:  slog.Default().With("component", "scheduler"),
		results: make(map[string]Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run is the state of one Run call.
type run struct {
	s    *Scheduler
	w    *workflow.Workflow
	fn   RunFunc
	done map[string]chan struct{}
	sem  chan struct{}
}

// Run executes every node of w with fn and returns once all nodes reached a final state.
// The returned error joins the errors of all failed nodes; skipped nodes are only reported
// through Result.
func (s *Scheduler) Run(ctx context.Context, w *workflow.Workflow, fn RunFunc) error {
	names := w.Nodes()

	s.mu.Lock()
	s.results = make(map[string]Result, len(names))
	for _, name := range names {
		s.results[name] = Result{State: NotStarted}
	}
	s.mu.Unlock()

	if len(names) == 0 {
		s.logger.Info("no nodes to execute")
		return nil
	}
	s.logger.Info("starting execution", "node_count", len(names))

	r := &run{s: s, w: w, fn: fn, done: make(map[string]chan struct{}, len(names))}
	if s.concurrency > 0 {
		r.sem = make(chan struct{}, s.concurrency)
	}
	for _, name := range names {
		r.done[name] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer close(r.done[name])
			r.execute(ctx, name)
		}(name)
	}
	wg.Wait()

	var errs []error
	for _, name := range names {
		res, _ := s.Result(name)
		if res.State == Completed && res.Error != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", name, res.Error))
		}
	}
	if len(errs) > 0 {
		s.logger.Error("execution completed with errors", "error_count", len(errs))
		return errors.Join(errs...)
	}
	s.logger.Info("execution completed successfully")
	return nil
}

func (r *run) execute(ctx context.Context, name string) {
	logger := r.s.logger.With("node", name)
	r.s.setResult(name, Result{State: Pending})

	preds := r.w.Predecessors(name)
	logger.Debug("waiting for predecessors", "predecessor_count", len(preds))
	for _, pred := range preds {
		select {
		case <-ctx.Done():
			logger.Warn("node cancelled", "error", ctx.Err())
			r.s.setResult(name, Result{State: Skipped, Error: fmt.Errorf("cancelled: %w", ctx.Err())})
			return
		case <-r.done[pred]:
		}
		if res, _ := r.s.Result(pred); !res.IsSuccess() {
			logger.Warn("predecessor did not succeed, skipping", "predecessor", pred, "predecessor_state", res.State.String())
			r.s.setResult(name, Result{State: Skipped, Error: fmt.Errorf("predecessor %s did not succeed", pred)})
			return
		}
	}

	if r.sem != nil {
		select {
		case <-ctx.Done():
			r.s.setResult(name, Result{State: Skipped, Error: fmt.Errorf("cancelled: %w", ctx.Err())})
			return
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		}
	}
	if err := ctx.Err(); err != nil {
		r.s.setResult(name, Result{State: Skipped, Error: fmt.Errorf("cancelled: %w", err)})
		return
	}

	logger.Info("predecessors satisfied, executing node")
	r.s.setResult(name, Result{State: Running})

	node, _ := r.w.Node(name)
	err := r.fn(ctx, node)
	if err != nil {
		logger.Error("node execution failed", "error", err)
	} else {
		logger.Info("node execution completed successfully")
	}
	r.s.setResult(name, Result{State: Completed, Error: err})
}

func (s *Scheduler) setResult(name string, res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[name] = res
}

// Result returns the state of the named node in the last Run.
func (s *Scheduler) Result(name string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[name]
	return res, ok
}

// Results returns a copy of all results of the last Run.
func (s *Scheduler) Results() map[string]Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Result, len(s.results))
	for name, res := range s.results {
		out[name] = res
	}
	return out
}

// Summary counts the results of the last Run by state, sorted by state name.
func (s *Scheduler) Summary() []StateCount {
	counts := make(map[State]int)
	for _, res := range s.Results() {
		counts[res.State]++
	}
	out := make([]StateCount, 0, len(counts))
	for state, n := range counts {
		out = append(out, StateCount{State: state, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State.String() < out[j].State.String() })
	return out
}

// StateCount is one line of Summary.
type StateCount struct {
	State State
	Count int
}
