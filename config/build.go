package config

import (
	"fmt"
	"log/slog"

	"github.com/nomis52/pipeflow/logging"
	"github.com/nomis52/pipeflow/metrics"
	"github.com/nomis52/pipeflow/pipeline"
)

// BuildOption configures BuildPipeline.
type BuildOption func(*buildOptions)

type buildOptions struct {
	logger      *slog.Logger
	hook        logging.LoggerHook
	instruments *metrics.Instruments
}

// WithLogger sets the base logger handed to every pipeline instance.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithLoggerHook derives each instance's logger through hook, scoped by the instance path
// (for example "render" and "render/fx").
func WithLoggerHook(hook logging.LoggerHook) BuildOption {
	return func(o *buildOptions) {
		o.hook = hook
	}
}

// WithInstruments records activation runs of every instance.
func WithInstruments(i *metrics.Instruments) BuildOption {
	return func(o *buildOptions) {
		o.instruments = i
	}
}

// BuildPipeline instantiates the named declaration. Sub-pipeline references are
// instantiated recursively; each reference gets its own instance.
func (c *Config) BuildPipeline(name string, opts ...BuildOption) (*pipeline.Pipeline, error) {
	o := &buildOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return c.build(name, name, nil, o)
}

func (c *Config) build(name, scope string, stack []string, o *buildOptions) (*pipeline.Pipeline, error) {
	for _, s := range stack {
		if s == name {
			return nil, fmt.Errorf("pipeline %q: reference cycle through %q", stack[0], name)
		}
	}
	decl, ok := c.Pipelines[name]
	if !ok {
		return nil, fmt.Errorf("pipeline %q is not declared", name)
	}
	stack = append(stack, name)

	logger := o.logger
	if o.hook != nil {
		logger = o.hook.LoggerForScope(logger, scope)
	}
	p := pipeline.New(name, pipeline.WithLogger(logger), pipeline.WithInstruments(o.instruments))

	if err := c.populate(p, decl, scope, stack, o); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", name, err)
	}
	return p, nil
}

func (c *Config) populate(p *pipeline.Pipeline, decl PipelineDecl, scope string, stack []string, o *buildOptions) error {
	for _, in := range decl.Inputs {
		if err := p.AddInput(in.Name, in.Optional); err != nil {
			return err
		}
	}
	for _, out := range decl.Outputs {
		if err := p.AddOutput(out); err != nil {
			return err
		}
	}

	for _, pd := range decl.Processes {
		var proc pipeline.Process
		if pd.Pipeline != "" {
			inner, err := c.build(pd.Pipeline, scope+"/"+pd.Name, stack, o)
			if err != nil {
				return err
			}
			proc = inner
		} else {
			proc = &DeclaredProcess{Name: pd.Name, Specs: pd.Ports}
		}

		var nodeOpts []pipeline.NodeOption
		if len(pd.Optional) > 0 {
			nodeOpts = append(nodeOpts, pipeline.WithOptionalPorts(pd.Optional...))
		}
		if len(pd.NoExport) > 0 {
			nodeOpts = append(nodeOpts, pipeline.WithoutExport(pd.NoExport...))
		}
		if pd.Disabled {
			nodeOpts = append(nodeOpts, pipeline.WithDisabled())
		}
		if err := p.AddProcess(pd.Name, proc, nodeOpts...); err != nil {
			return err
		}
	}

	for _, sd := range decl.Switches {
		if err := p.AddSwitch(sd.Name, sd.Options, sd.Outputs...); err != nil {
			return err
		}
		if sd.Selected != "" {
			if err := p.Select(sd.Name, sd.Selected); err != nil {
				return err
			}
		}
	}

	for _, l := range decl.Links {
		if err := p.LinkSpec(l); err != nil {
			return err
		}
	}
	for _, e := range decl.Exports {
		if err := p.Export(e.Node, e.Port, e.As); err != nil {
			return err
		}
	}
	if decl.ExportUnlinked {
		if err := p.ExportUnlinked(); err != nil {
			return err
		}
	}
	return nil
}
