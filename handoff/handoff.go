// Package handoff turns a built workflow into a job/dependency document an external
// executor can consume, encoded as JSON or YAML.
package handoff

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/pipeflow/pipeline"
	"github.com/nomis52/pipeflow/schedule"
	"github.com/nomis52/pipeflow/workflow"
)

// Document describes one workflow build.
type Document struct {
	ID          string     `json:"id" yaml:"id"`
	Pipeline    string     `json:"pipeline" yaml:"pipeline"`
	Fingerprint string     `json:"fingerprint" yaml:"fingerprint"`
	GeneratedAt time.Time  `json:"generated_at" yaml:"generated_at"`
	Schedule    []string   `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty" yaml:"next_run,omitempty"`

	Jobs         []Job        `json:"jobs" yaml:"jobs"`
	Dependencies []Dependency `json:"dependencies" yaml:"dependencies"`
	Groups       []Group      `json:"groups,omitempty" yaml:"groups,omitempty"`
	Head         []string     `json:"head" yaml:"head"`
	Tail         []string     `json:"tail" yaml:"tail"`
	Order        []string     `json:"order" yaml:"order"`

	// Hidden lists the pipeline parameters no activated node uses.
	Hidden []string `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// Job is one process to run.
type Job struct {
	Name    string   `json:"name" yaml:"name"`
	Inputs  []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// Dependency says To may only start once From has completed.
type Dependency struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Group collects the jobs inlined from one sub-pipeline node.
type Group struct {
	Name string   `json:"name" yaml:"name"`
	Jobs []string `json:"jobs" yaml:"jobs"`
}

// Option configures New.
type Option func(*options)

type options struct {
	now      func() time.Time
	newID    func() string
	triggers []schedule.Trigger
	snapshot *pipeline.Snapshot
}

// WithTriggers records the schedules starting the pipeline and its next run.
func WithTriggers(triggers []schedule.Trigger) Option {
	return func(o *options) {
		o.triggers = triggers
	}
}

// WithSnapshot records the hidden parameters of the pipeline the workflow was built from.
func WithSnapshot(s *pipeline.Snapshot) Option {
	return func(o *options) {
		o.snapshot = s
	}
}

// WithClock overrides the time source used for GeneratedAt and NextRun.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New describes w, built from the pipeline named name.
func New(name string, w *workflow.Workflow, opts ...Option) *Document {
	o := &options{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(o)
	}

	now := o.now()
	d := &Document{
		ID:           o.newID(),
		Pipeline:     name,
		Fingerprint:  w.Fingerprint(),
		GeneratedAt:  now,
		Jobs:         []Job{},
		Dependencies: []Dependency{},
		Head:         w.Head(),
		Tail:         w.Tail(),
		Order:        []string{},
	}

	groups := make(map[string][]string)
	for _, name := range w.Nodes() {
		n, _ := w.Node(name)
		d.Jobs = append(d.Jobs, newJob(n))
		if i := strings.LastIndex(name, "."); i >= 0 {
			groups[name[:i]] = append(groups[name[:i]], name)
		}
	}
	for _, e := range w.Edges() {
		d.Dependencies = append(d.Dependencies, Dependency{From: e.From, To: e.To})
	}
	for _, n := range w.Topological() {
		d.Order = append(d.Order, n.Name)
	}

	groupNames := make([]string, 0, len(groups))
	for g := range groups {
		groupNames = append(groupNames, g)
	}
	sort.Strings(groupNames)
	for _, g := range groupNames {
		d.Groups = append(d.Groups, Group{Name: g, Jobs: groups[g]})
	}

	for _, t := range o.triggers {
		for _, p := range t.Pipelines {
			if p == name {
				d.Schedule = append(d.Schedule, t.Schedule.String())
			}
		}
	}
	if next, ok := schedule.NextRun(o.triggers, name, now); ok {
		d.NextRun = &next
	}

	if o.snapshot != nil {
		for _, pt := range o.snapshot.Root().Ports {
			if pt.Hidden {
				d.Hidden = append(d.Hidden, pt.Name)
			}
		}
	}
	return d
}

func newJob(n *workflow.Node) Job {
	j := Job{Name: n.Name}
	if n.Process == nil {
		return j
	}
	for _, spec := range n.Process.Ports() {
		if spec.Output {
			j.Outputs = append(j.Outputs, spec.Name)
		} else {
			j.Inputs = append(j.Inputs, spec.Name)
		}
	}
	return j
}

// WriteJSON writes the document as indented JSON.
func (d *Document) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding handoff document: %w", err)
	}
	return nil
}

// WriteYAML writes the document as YAML.
func (d *Document) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encoding handoff document: %w", err)
	}
	return enc.Close()
}

// Write encodes the document in format, "json" or "yaml".
func (d *Document) Write(w io.Writer, format string) error {
	switch format {
	case "json":
		return d.WriteJSON(w)
	case "yaml":
		return d.WriteYAML(w)
	default:
		return fmt.Errorf("unknown format %q (expected json or yaml)", format)
	}
}
