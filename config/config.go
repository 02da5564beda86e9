package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/pipeflow/logging"
	"github.com/nomis52/pipeflow/metrics"
	"github.com/nomis52/pipeflow/pipeline"
	"github.com/nomis52/pipeflow/schedule"
)

const (
	// Default monitoring settings
	defaultJobName        = "pipeflow"
	defaultMetricsTimeout = 10 * time.Second
)

// Config represents the complete application configuration
type Config struct {
	Logging logging.Config     `yaml:"logging"`
	Metrics metrics.PushConfig `yaml:"metrics"`

	// Schedule is a trigger declaration, e.g. "render,encode:0 2 * * *".
	Schedule string `yaml:"schedule"`

	// Main names the pipeline the CLI works on when none is given.
	Main string `yaml:"main"`

	Pipelines map[string]PipelineDecl `yaml:"pipelines"`
}

// PipelineDecl declares a pipeline. Entries are applied in field order: parameters first,
// then nodes, links, exports.
type PipelineDecl struct {
	Inputs         []InputDecl   `yaml:"inputs"`
	Outputs        []string      `yaml:"outputs"`
	Processes      []ProcessDecl `yaml:"processes"`
	Switches       []SwitchDecl  `yaml:"switches"`
	Links          []string      `yaml:"links"`
	Exports        []ExportDecl  `yaml:"exports"`
	ExportUnlinked bool          `yaml:"export_unlinked"`
}

// InputDecl declares a pipeline input parameter.
type InputDecl struct {
	Name     string `yaml:"name"`
	Optional bool   `yaml:"optional"`
}

// ProcessDecl declares a process node. Exactly one of Ports or Pipeline is set; Pipeline
// names another declaration which is instantiated as a sub-pipeline.
type ProcessDecl struct {
	Name     string              `yaml:"name"`
	Ports    []pipeline.PortSpec `yaml:"ports"`
	Pipeline string              `yaml:"pipeline"`
	Disabled bool                `yaml:"disabled"`
	Optional []string            `yaml:"optional"`
	NoExport []string            `yaml:"no_export"`
}

// SwitchDecl declares a switch node.
type SwitchDecl struct {
	Name     string   `yaml:"name"`
	Options  []string `yaml:"options"`
	Outputs  []string `yaml:"outputs"`
	Selected string   `yaml:"selected"`
}

// ExportDecl exports a process port as a pipeline parameter.
type ExportDecl struct {
	Node string `yaml:"node"`
	Port string `yaml:"port"`
	As   string `yaml:"as"`
}

// DeclaredProcess is the process handle carried by nodes built from a ProcessDecl.
type DeclaredProcess struct {
	Name  string
	Specs []pipeline.PortSpec
}

// Ports implements pipeline.Process.
func (d *DeclaredProcess) Ports() []pipeline.PortSpec {
	return d.Specs
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if len(c.Pipelines) == 0 {
		return fmt.Errorf("at least one pipeline is required")
	}
	if c.Main == "" {
		return fmt.Errorf("main pipeline is required when more than one pipeline is declared")
	}
	if _, ok := c.Pipelines[c.Main]; !ok {
		return fmt.Errorf("main pipeline %q is not declared", c.Main)
	}

	for _, name := range c.PipelineNames() {
		if err := c.Pipelines[name].validate(c.Pipelines); err != nil {
			return fmt.Errorf("pipeline %q: %w", name, err)
		}
	}
	for _, name := range c.PipelineNames() {
		if err := c.checkReferences(name, nil); err != nil {
			return err
		}
	}

	if c.Schedule != "" {
		if _, err := c.Triggers(); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}
	return nil
}

func (d PipelineDecl) validate(all map[string]PipelineDecl) error {
	for _, p := range d.Processes {
		if p.Name == "" {
			return fmt.Errorf("process name is required")
		}
		switch {
		case len(p.Ports) > 0 && p.Pipeline != "":
			return fmt.Errorf("process %q: ports and pipeline are mutually exclusive", p.Name)
		case len(p.Ports) == 0 && p.Pipeline == "":
			return fmt.Errorf("process %q: one of ports or pipeline is required", p.Name)
		}
		if p.Pipeline != "" {
			if _, ok := all[p.Pipeline]; !ok {
				return fmt.Errorf("process %q: unknown pipeline %q", p.Name, p.Pipeline)
			}
		}
	}
	for _, s := range d.Switches {
		if s.Name == "" {
			return fmt.Errorf("switch name is required")
		}
		if s.Selected != "" && !contains(s.Options, s.Selected) {
			return fmt.Errorf("switch %q: selected option %q is not one of %s", s.Name, s.Selected, strings.Join(s.Options, ", "))
		}
	}
	for _, l := range d.Links {
		if !strings.Contains(l, "->") {
			return fmt.Errorf("link %q: expected 'node.port->node.port'", l)
		}
	}
	for _, e := range d.Exports {
		if e.Node == "" || e.Port == "" {
			return fmt.Errorf("export requires node and port")
		}
	}
	return nil
}

// checkReferences walks sub-pipeline references from name and fails on a cycle.
func (c *Config) checkReferences(name string, path []string) error {
	for i, p := range path {
		if p == name {
			cycle := append(append([]string{}, path[i:]...), name)
			return fmt.Errorf("pipeline reference cycle: %s", strings.Join(cycle, " -> "))
		}
	}
	path = append(path, name)
	for _, proc := range c.Pipelines[name].Processes {
		if proc.Pipeline == "" {
			continue
		}
		if err := c.checkReferences(proc.Pipeline, path); err != nil {
			return err
		}
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()

	if c.Metrics.Job == "" {
		c.Metrics.Job = defaultJobName
	}
	if c.Metrics.Timeout == 0 {
		c.Metrics.Timeout = defaultMetricsTimeout
	}
	if c.Main == "" && len(c.Pipelines) == 1 {
		for name := range c.Pipelines {
			c.Main = name
		}
	}
}

// Redacted returns a copy of the config with the password of the metrics push URL masked.
func (c *Config) Redacted() Config {
	out := *c
	if u, err := url.Parse(c.Metrics.URL); err == nil && u.User != nil {
		out.Metrics.URL = u.Redacted()
	}
	return out
}

// PipelineNames returns the declared pipeline names, sorted.
func (c *Config) PipelineNames() []string {
	names := make([]string, 0, len(c.Pipelines))
	for name := range c.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Triggers parses the schedule. It returns nil when no schedule is configured.
func (c *Config) Triggers() ([]schedule.Trigger, error) {
	if c.Schedule == "" {
		return nil, nil
	}
	available := make(map[string]bool, len(c.Pipelines))
	for name := range c.Pipelines {
		available[name] = true
	}
	return schedule.ParseTriggers(c.Schedule, available)
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding %s: %w", path, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
