package workflow

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nomis52/pipeflow/metrics"
	"github.com/nomis52/pipeflow/pipeline"
)

// BuildOption configures Build and FromSnapshot.
type BuildOption func(*builder)

// WithLogger sets a custom logger for the build
func WithLogger(logger *slog.Logger) BuildOption {
	return func(b *builder) {
		b.logger = logger.With("component", "workflow")
	}
}

// WithInstruments records the build result on the given instruments.
func WithInstruments(i *metrics.Instruments) BuildOption {
	return func(b *builder) {
		b.instruments = i
	}
}

// Build compiles the currently activated part of p into a Workflow.
func Build(p *pipeline.Pipeline, opts ...BuildOption) (*Workflow, error) {
	return FromSnapshot(p.Snapshot(), opts...)
}

// FromSnapshot compiles the activated part of a pipeline snapshot into a Workflow. A
// *CycleError is returned when activated links form a loop between processes.
func FromSnapshot(s *pipeline.Snapshot, opts ...BuildOption) (*Workflow, error) {
	b := &builder{
		logger: slog.Default().With("component", "workflow"),
		w:      New(),
	}
	for _, opt := range opts {
		opt(b)
	}

	err := b.build(&scope{snap: s})
	if err != nil {
		result := "error"
		if errors.Is(err, ErrCycle) {
			result = metrics.BuildCycle
		}
		b.instruments.ObserveBuild(s.Name, result, 0, 0)
		b.logger.Warn("workflow build failed", "pipeline", s.Name, "error", err)
		return nil, fmt.Errorf("building workflow for pipeline %q: %w", s.Name, err)
	}

	edges := len(b.w.Edges())
	b.instruments.ObserveBuild(s.Name, metrics.BuildOK, b.w.Len(), edges)
	b.logger.Debug("workflow built",
		"pipeline", s.Name,
		"nodes", b.w.Len(),
		"edges", edges,
		"head", b.w.Head(),
		"tail", b.w.Tail())
	return b.w, nil
}

type builder struct {
	logger      *slog.Logger
	instruments *metrics.Instruments
	w           *Workflow
	leaves      []leaf
}

// scope is one pipeline level being flattened. node is the SubPipeline node in the parent
// scope that holds this level.
type scope struct {
	snap   *pipeline.Snapshot
	prefix string
	parent *scope
	node   string
}

func (sc *scope) child(n *pipeline.NodeState) *scope {
	return &scope{
		snap:   n.Inner,
		prefix: sc.prefix + n.Name + ".",
		parent: sc,
		node:   n.Name,
	}
}

// leaf is an activated process in some scope.
type leaf struct {
	sc   *scope
	node *pipeline.NodeState
}

func (l leaf) name() string {
	return l.sc.prefix + l.node.Name
}

func (b *builder) build(root *scope) error {
	if err := b.collect(root); err != nil {
		return err
	}
	for _, l := range b.leaves {
		if err := b.connect(l); err != nil {
			return err
		}
	}
	return nil
}

// collect adds a workflow node for every activated process, descending into activated
// sub-pipelines.
func (b *builder) collect(sc *scope) error {
	for i := range sc.snap.Nodes {
		n := &sc.snap.Nodes[i]
		if !n.Activated {
			continue
		}
		switch n.Kind {
		case pipeline.KindProcess:
			l := leaf{sc: sc, node: n}
			if err := b.w.AddNode(l.name(), n.Process); err != nil {
				return err
			}
			b.leaves = append(b.leaves, l)
		case pipeline.KindSubPipeline:
			if n.Inner == nil {
				continue
			}
			if err := b.collect(sc.child(n)); err != nil {
				return err
			}
		case pipeline.KindRoot, pipeline.KindSwitch:
		}
	}
	return nil
}

// connect adds an edge from l to every process its activated outputs reach.
func (b *builder) connect(l leaf) error {
	visited := make(map[string]bool)
	var targets []string
	for _, pt := range l.node.Ports {
		if !pt.Output || !pt.Activated {
			continue
		}
		b.follow(l.sc, pipeline.Endpoint{Node: l.node.Name, Port: pt.Name}, visited, func(target string) {
			targets = append(targets, target)
		})
	}
	for _, target := range targets {
		if err := b.w.AddEdge(l.name(), target); err != nil {
			return err
		}
	}
	return nil
}

// follow walks the links leaving from through switches and pipeline boundaries and calls
// emit for every activated process reached.
func (b *builder) follow(sc *scope, from pipeline.Endpoint, visited map[string]bool, emit func(string)) {
	for _, dst := range sc.snap.LinksTo(from) {
		key := sc.prefix + "\x00" + dst.Node + "\x00" + dst.Port
		if visited[key] {
			continue
		}
		visited[key] = true

		n, ok := sc.snap.Node(dst.Node)
		if !ok {
			continue
		}
		pt, ok := n.Port(dst.Port)
		if !ok || !pt.Activated {
			continue
		}

		switch n.Kind {
		case pipeline.KindRoot:
			if sc.parent != nil {
				b.follow(sc.parent, pipeline.Endpoint{Node: sc.node, Port: dst.Port}, visited, emit)
			}
		case pipeline.KindProcess:
			if n.Activated {
				emit(sc.prefix + n.Name)
			}
		case pipeline.KindSwitch:
			if out, ok := n.SwitchOutput(dst.Port); ok && n.Activated {
				b.follow(sc, pipeline.Endpoint{Node: n.Name, Port: out}, visited, emit)
			}
		case pipeline.KindSubPipeline:
			if n.Activated && n.Inner != nil {
				b.follow(sc.child(n), pipeline.Endpoint{Node: "", Port: dst.Port}, visited, emit)
			}
		}
	}
}
