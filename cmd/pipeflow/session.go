package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nomis52/pipeflow/config"
	"github.com/nomis52/pipeflow/logging"
	"github.com/nomis52/pipeflow/metrics"
	"github.com/nomis52/pipeflow/pipeline"
	"github.com/nomis52/pipeflow/workflow"
)

// session is what every pipeline subcommand works on: the loaded config, the ambient
// logger and metrics, and the built pipeline with the command line overrides applied.
type session struct {
	cmd        *cobra.Command
	configPath string
	cfg        config.Config
	name       string

	logger      *logging.Logger
	scrape      *metrics.ScrapeRegistry
	push        *metrics.PushRegistry
	instruments *metrics.Instruments

	pipeline *pipeline.Pipeline
}

// loadConfig reads the config named by the --config flag. Logs go to the command's error
// stream unless the config sends them elsewhere.
func loadConfig(cmd *cobra.Command) (string, config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return "", config.Config{}, fmt.Errorf("config flag (-c or --config) is required")
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return "", config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Logging.Output == "stderr" {
		cfg.Logging.Writer = cmd.ErrOrStderr()
	}
	return path, cfg, nil
}

// newSession loads the config, sets up logging and metrics, and builds the selected
// pipeline. opts are applied after the session's own logger and instruments.
func newSession(cmd *cobra.Command, opts ...config.BuildOption) (*session, error) {
	path, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	s := &session{cmd: cmd, configPath: path, cfg: cfg, logger: logger}

	if err := s.setupMetrics(); err != nil {
		logger.Close()
		return nil, err
	}

	s.name, _ = cmd.Flags().GetString("pipeline")
	if s.name == "" {
		s.name = cfg.Main
	}
	if _, ok := cfg.Pipelines[s.name]; !ok {
		logger.Close()
		return nil, fmt.Errorf("pipeline %q is not declared in %s", s.name, path)
	}

	buildOpts := append([]config.BuildOption{
		config.WithLogger(logger.Logger),
		config.WithInstruments(s.instruments),
	}, opts...)
	s.pipeline, err = cfg.BuildPipeline(s.name, buildOpts...)
	if err != nil {
		logger.Close()
		return nil, err
	}
	if err := s.applyOverrides(); err != nil {
		logger.Close()
		return nil, err
	}

	logger.Debug("pipeline ready", "pipeline", s.name, "config_path", path)
	return s, nil
}

// setupMetrics pushes when a remote write URL is configured and collects in-process
// otherwise.
func (s *session) setupMetrics() error {
	pushCfg := s.cfg.Metrics
	if url, _ := s.cmd.Flags().GetString("push-url"); url != "" {
		pushCfg.URL = url
	}

	var reg metrics.Registry
	if pushCfg.URL != "" {
		if pushCfg.Instance == "" {
			hostname, err := os.Hostname()
			if err != nil {
				return fmt.Errorf("failed to get hostname: %w", err)
			}
			pushCfg.Instance = hostname
		}
		s.push = metrics.NewPushRegistry(pushCfg)
		reg = s.push
	} else {
		scrape, err := metrics.NewScrapeRegistry()
		if err != nil {
			return fmt.Errorf("failed to create metrics registry: %w", err)
		}
		s.scrape = scrape
		reg = scrape
	}

	instruments, err := metrics.NewInstruments(reg)
	if err != nil {
		return err
	}
	s.instruments = instruments
	return nil
}

// applyOverrides applies --disable and --select. Paths reach into sub-pipelines with dots.
func (s *session) applyOverrides() error {
	disabled, _ := s.cmd.Flags().GetStringArray("disable")
	for _, path := range disabled {
		owner, node, err := s.pipeline.Resolve(path)
		if err != nil {
			return fmt.Errorf("--disable %s: %w", path, err)
		}
		if err := owner.SetEnabled(node, false); err != nil {
			return fmt.Errorf("--disable %s: %w", path, err)
		}
	}

	selections, _ := s.cmd.Flags().GetStringArray("select")
	for _, sel := range selections {
		path, option, ok := strings.Cut(sel, "=")
		if !ok || path == "" || option == "" {
			return fmt.Errorf("--select %s: expected switch=option", sel)
		}
		owner, node, err := s.pipeline.Resolve(path)
		if err != nil {
			return fmt.Errorf("--select %s: %w", sel, err)
		}
		if err := owner.Select(node, option); err != nil {
			return fmt.Errorf("--select %s: %w", sel, err)
		}
	}
	return nil
}

// workflow builds the workflow of the session's pipeline.
func (s *session) workflow(opts ...workflow.BuildOption) (*workflow.Workflow, error) {
	buildOpts := append([]workflow.BuildOption{
		workflow.WithLogger(s.logger.Logger),
		workflow.WithInstruments(s.instruments),
	}, opts...)
	return workflow.Build(s.pipeline, buildOpts...)
}

// close reports the collected metrics and releases the logger.
func (s *session) close(ctx context.Context) error {
	var errs []error
	if show, _ := s.cmd.Flags().GetBool("metrics"); show {
		if s.scrape != nil {
			if err := s.scrape.WriteText(s.cmd.ErrOrStderr(), metrics.Namespace+"_"); err != nil {
				errs = append(errs, err)
			}
		} else {
			fmt.Fprintln(s.cmd.ErrOrStderr(), "metrics are pushed to the remote write endpoint")
		}
	}
	if s.push != nil {
		if err := s.push.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to push metrics: %w", err))
		}
	}
	if err := s.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// withSession runs fn on a fresh session and always closes it.
func withSession(cmd *cobra.Command, fn func(s *session) error, opts ...config.BuildOption) (err error) {
	s, err := newSession(cmd, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close(cmd.Context()))
	}()
	return fn(s)
}
