// Package server provides an HTTP server that serves one pipeline of a pipeflow config.
//
// The server exposes the pipeline's activation state and workflow, lets clients change
// switch selections and enable flags, and runs the workflow on demand or on the
// configured schedule.
//
// # Endpoints
//
//   - GET /health - Simple health check, returns "ok"
//   - GET /version - Build properties, start time and hostname
//   - GET /api/status - Pipeline snapshot, hidden parameters, run status and next run
//   - GET /api/plan - Handoff document of the current workflow (?format=json|yaml)
//   - GET /api/workflow.dot - Current workflow as a Graphviz digraph (?rankdir=LR)
//   - POST /api/select - Selects a switch option, {"switch": "mode", "option": "fx"}
//   - POST /api/enable - Enables or disables a node, {"node": "fx.blur", "enabled": false}
//   - POST /run - Starts a run of the current workflow (?trigger=manual)
//   - GET /history - Summaries of completed runs, newest first (?limit=N)
//   - GET /history/nodes?id=... - Node executions of a completed run
//   - POST /history/reload - Re-reads the run history (only with a state directory)
//   - GET /config - Current configuration with credentials masked (?format=yaml|json)
//   - POST /reload - Reloads configuration from disk and rebuilds the pipeline
//   - GET /metrics - Prometheus metrics of the engine and workflow builds
//
// # Architecture
//
// Config-derived dependencies (the config, the built pipeline and its metrics registry)
// are swapped atomically on reload. Runs read the pipeline at start, so a reload takes
// effect on the next run without interrupting one in progress. Metrics restart from
// zero on reload.
//
// # Example
//
//	srv, err := server.New("/etc/pipeflow/config.yaml", server.WithListenAddr(":8080"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/nomis52/pipeflow/buildinfo"
	"github.com/nomis52/pipeflow/config"
	"github.com/nomis52/pipeflow/metrics"
	"github.com/nomis52/pipeflow/pipeline"
	"github.com/nomis52/pipeflow/schedule"
	"github.com/nomis52/pipeflow/server/handlers"
	"github.com/nomis52/pipeflow/server/runner"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultListenAddr      = ":8080"
	defaultMaxHistory      = 100
)

// serverDeps holds config-derived dependencies that are swapped atomically on reload.
type serverDeps struct {
	config      *config.Config
	pipeline    *pipeline.Pipeline
	scrape      *metrics.ScrapeRegistry
	instruments *metrics.Instruments
	triggers    []schedule.Trigger
}

// Server is the HTTP server for a pipeflow pipeline.
type Server struct {
	addr         string
	configPath   string
	pipelineName string
	stateDir     string
	certFile     string
	keyFile      string
	runnerOpts   []runner.Option

	base       *slog.Logger // without the server's component attribute
	logger     *slog.Logger
	deps       atomic.Pointer[serverDeps]
	httpServer *http.Server
	runner     *runner.Runner
	diskStore  *runner.DiskStore
	certLoader *CertLoader
	jobs       atomic.Pointer[[]*schedule.Job]
	props      handlers.ServerProperties
}

// Option configures a Server.
type Option func(*Server) error

// WithListenAddr configures the address the server listens on.
// Default is ":8080".
func WithListenAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithLogger sets the server's logger. By default it logs JSON to stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithPipeline selects the pipeline to serve. Default is the config's main pipeline.
func WithPipeline(name string) Option {
	return func(s *Server) error {
		s.pipelineName = name
		return nil
	}
}

// WithStateDir persists run history as JSON files in dir.
func WithStateDir(dir string) Option {
	return func(s *Server) error {
		s.stateDir = dir
		return nil
	}
}

// WithTLS serves HTTPS with the given certificate and key. The files are re-read when
// they change.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) error {
		s.certFile = certFile
		s.keyFile = keyFile
		return nil
	}
}

// WithRunnerOptions passes options to the runner, e.g. a dispatcher.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(s *Server) error {
		s.runnerOpts = append(s.runnerOpts, opts...)
		return nil
	}
}

// New creates a new Server with the given config path and options.
// It loads the configuration and builds the served pipeline.
func New(configPath string, opts ...Option) (*Server, error) {
	s := &Server{
		addr:       defaultListenAddr,
		configPath: configPath,
		logger:     slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.base = s.logger
	s.logger = s.base.With("component", "server")

	if err := s.Reload(); err != nil {
		return nil, err
	}

	runnerOpts := s.runnerOpts
	if s.stateDir != "" {
		store, err := runner.NewDiskStore(s.stateDir, defaultMaxHistory, s.base)
		if err != nil {
			return nil, err
		}
		s.diskStore = store
		runnerOpts = append([]runner.Option{runner.WithStateStore(store)}, runnerOpts...)
	}
	s.runner = runner.New(s.base, s, runnerOpts...)

	if s.certFile != "" {
		loader, err := NewCertLoader(s.certFile, s.keyFile, s.logger)
		if err != nil {
			return nil, err
		}
		s.certLoader = loader
	}

	hostname, _ := os.Hostname()
	s.props = handlers.ServerProperties{
		Build:     buildinfo.Get(),
		StartedAt: time.Now(),
		Hostname:  hostname,
	}
	return s, nil
}

// Reload reads the config from disk and rebuilds the pipeline and its metrics.
func (s *Server) Reload() error {
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return err
	}

	name := s.pipelineName
	if name == "" {
		name = cfg.Main
	}
	if _, ok := cfg.Pipelines[name]; !ok {
		return fmt.Errorf("pipeline %q is not declared in %s", name, s.configPath)
	}

	scrape, err := metrics.NewScrapeRegistry()
	if err != nil {
		return fmt.Errorf("failed to create metrics registry: %w", err)
	}
	instruments, err := metrics.NewInstruments(scrape)
	if err != nil {
		return err
	}

	p, err := cfg.BuildPipeline(name, config.WithLogger(s.base), config.WithInstruments(instruments))
	if err != nil {
		return err
	}
	triggers, err := cfg.Triggers()
	if err != nil {
		return err
	}

	s.deps.Store(&serverDeps{
		config:      &cfg,
		pipeline:    p,
		scrape:      scrape,
		instruments: instruments,
		triggers:    triggers,
	})

	s.logger.Info("configuration loaded", "config_path", s.configPath, "pipeline", name)
	return nil
}

// Config returns the current configuration.
func (s *Server) Config() *config.Config {
	return s.deps.Load().config
}

// Pipeline returns the served pipeline.
func (s *Server) Pipeline() *pipeline.Pipeline {
	return s.deps.Load().pipeline
}

// Instruments returns the metrics of the served pipeline.
func (s *Server) Instruments() *metrics.Instruments {
	return s.deps.Load().instruments
}

// Triggers returns the triggers that include the served pipeline.
func (s *Server) Triggers() []schedule.Trigger {
	deps := s.deps.Load()
	var out []schedule.Trigger
	for _, t := range deps.triggers {
		for _, name := range t.Pipelines {
			if name == deps.pipeline.Name() {
				out = append(out, t)
			}
		}
	}
	return out
}

// NextRun returns the next scheduled run time, or nil if no schedule is running.
func (s *Server) NextRun() *time.Time {
	jobs := s.jobs.Load()
	if jobs == nil {
		return nil
	}
	var next *time.Time
	for _, j := range *jobs {
		t := j.NextRun()
		if next == nil || t.Before(*next) {
			next = &t
		}
	}
	return next
}

// Status returns the current run status by delegating to the runner.
func (s *Server) Status() runner.RunStatus {
	return s.runner.Status()
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done.
// The triggers of the served pipeline are started with it.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	if s.certLoader != nil {
		s.httpServer.TLSConfig = &tls.Config{GetCertificate: s.certLoader.GetCertificate}
	}

	var jobs []*schedule.Job
	var jobsDone []<-chan struct{}
	for _, t := range s.Triggers() {
		job := schedule.NewJob(s.Pipeline().Name(), t.Schedule, func(ctx context.Context) error {
			return s.runner.RunAndWait(ctx, "schedule")
		}, s.base)
		s.logger.Info("starting schedule", "schedule", t.Schedule.String(), "next_run", job.NextRun())
		jobs = append(jobs, job)
		jobsDone = append(jobsDone, job.Start(ctx))
	}
	s.jobs.Store(&jobs)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.addr,
			"config_path", s.configPath,
			"tls", s.certLoader != nil,
		)
		var err error
		if s.certLoader != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		for _, done := range jobsDone {
			<-done
		}
		s.runner.Wait()
		return err
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /version", handlers.NewPropertiesHandler(s.props))

	mux.Handle("GET /api/status", handlers.NewAPIStatusHandler(s.logger, s))
	mux.Handle("GET /api/plan", handlers.NewPlanHandler(s.logger, s))
	mux.Handle("GET /api/workflow.dot", handlers.NewDOTHandler(s.logger, s))
	mux.Handle("POST /api/select", handlers.NewSelectHandler(s.logger, s))
	mux.Handle("POST /api/enable", handlers.NewEnableHandler(s.logger, s))

	mux.Handle("POST /run", handlers.NewRunHandler(s.runner))
	mux.Handle("GET /history", handlers.NewHistoryHandler(s.runner))
	mux.Handle("GET /history/nodes", handlers.NewHistoryNodesHandler(s.runner))
	if s.diskStore != nil {
		mux.Handle("POST /history/reload", handlers.NewStoreReloadHandler(s.logger, s.diskStore))
	}

	mux.Handle("GET /config", handlers.NewConfigHandler(s))
	mux.Handle("POST /reload", handlers.NewReloadHandler(s.logger, s))

	mux.Handle("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.deps.Load().scrape.Handler().ServeHTTP(w, r)
	}))
}
