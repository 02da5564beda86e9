package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nomis52/pipeflow/metrics"
)

// rootIndex is the arena slot of the root node.
const rootIndex = 0

// Pipeline owns a graph of nodes and the links between their ports.
type Pipeline struct {
	name        string
	logger      *slog.Logger
	instruments *metrics.Instruments

	nodes  []*node
	byName map[string]int
	ports  []*port
	links  linkRegistry

	observers []subscription
	nextSubID int

	mu sync.RWMutex
}

// Option is a function that configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger.With("component", "pipeline", "pipeline", p.name)
	}
}

// WithInstruments records activation runs on the given instruments.
func WithInstruments(i *metrics.Instruments) Option {
	return func(p *Pipeline) {
		p.instruments = i
	}
}

// New creates an empty pipeline holding only its root node.
func New(name string, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:   name,
		logger: slog.Default().With("component", "pipeline", "pipeline", name),
		byName: make(map[string]int),
		links:  newLinkRegistry(),
	}
	root := newNode("", KindRoot)
	p.nodes = append(p.nodes, root)
	p.byName[""] = rootIndex

	for _, opt := range opts {
		opt(p)
	}

	p.activate()
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// Ports returns the pipeline parameters, making a *Pipeline usable as the Process of a
// SubPipeline node in another pipeline.
func (p *Pipeline) Ports() []PortSpec {
	p.mu.RLock()
	defer p.mu.RUnlock()

	root := p.nodes[rootIndex]
	specs := make([]PortSpec, 0, len(root.ports))
	for _, idx := range root.ports {
		pt := p.ports[idx]
		specs = append(specs, PortSpec{Name: pt.name, Optional: pt.optional, Output: pt.output})
	}
	return specs
}

// mutate runs fn under the write lock and, if it succeeds, one activation run. Events are
// delivered after the lock is released.
func (p *Pipeline) mutate(fn func() error) error {
	p.mu.Lock()
	if err := fn(); err != nil {
		p.mu.Unlock()
		return err
	}
	events := p.activate()
	observers := make([]subscription, len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()

	notify(observers, events)
	return nil
}

// AddInput declares a pipeline input parameter.
func (p *Pipeline) AddInput(name string, optional bool) error {
	return p.mutate(func() error {
		return p.addRootPort("add_input", name, optional, false)
	})
}

// AddOutput declares a pipeline output parameter.
func (p *Pipeline) AddOutput(name string) error {
	return p.mutate(func() error {
		return p.addRootPort("add_output", name, false, true)
	})
}

func (p *Pipeline) addRootPort(op, name string, optional, output bool) error {
	if err := validPortName(name); err != nil {
		return topologyErr(op, "", name, err)
	}
	_, err := p.addPort(op, rootIndex, PortSpec{Name: name, Optional: optional, Output: output})
	return err
}

// AddProcess adds a node running proc. A *Pipeline process makes a SubPipeline node whose
// ports mirror the inner pipeline's parameters; the inner pipeline must be fully declared
// before it is added.
func (p *Pipeline) AddProcess(name string, proc Process, opts ...NodeOption) error {
	if proc == nil {
		return topologyErr("add_process", name, "", fmt.Errorf("%w: nil process", ErrInvalidName))
	}

	kind := KindProcess
	inner, isPipeline := proc.(*Pipeline)
	if isPipeline {
		kind = KindSubPipeline
		if inner == p || inner.contains(p) {
			return topologyErr("add_process", name, "", fmt.Errorf("%w: pipeline %q cannot contain itself", ErrInvalidLink, p.name))
		}
	}

	// Read the ports before taking our own lock; a sub-pipeline locks itself.
	specs := proc.Ports()

	o := nodeOptions{optional: make(map[string]bool), noExport: make(map[string]bool)}
	for _, opt := range opts {
		opt(&o)
	}

	return p.mutate(func() error {
		if err := p.checkNewNode("add_process", name); err != nil {
			return err
		}
		seen := make(map[string]bool, len(specs))
		for _, s := range specs {
			if err := validPortName(s.Name); err != nil {
				return topologyErr("add_process", name, s.Name, err)
			}
			if seen[s.Name] {
				return topologyErr("add_process", name, s.Name, ErrDuplicatePort)
			}
			seen[s.Name] = true
		}
		for portName := range o.optional {
			if !seen[portName] {
				return topologyErr("add_process", name, portName, ErrUnknownPort)
			}
		}

		n := newNode(name, kind)
		n.process = proc
		n.inner = inner
		n.enabled = !o.disabled
		n.noExport = o.noExport
		idx := p.appendNode(n)
		for _, s := range specs {
			if o.optional[s.Name] {
				s.Optional = true
			}
			if _, err := p.addPort("add_process", idx, s); err != nil {
				return err
			}
		}
		p.logger.Debug("node added", "node", name, "kind", kind.String(), "ports", len(specs))
		return nil
	})
}

// AddSwitch adds a switch node. For every option and output there is an input port named
// SwitchInput(option, output); there is one output port per output. The first option is
// selected.
func (p *Pipeline) AddSwitch(name string, options []string, outputs ...string) error {
	return p.mutate(func() error {
		if err := p.checkNewNode("add_switch", name); err != nil {
			return err
		}
		if len(options) == 0 || len(outputs) == 0 {
			return topologyErr("add_switch", name, "", fmt.Errorf("%w: switch needs at least one option and one output", ErrInvalidName))
		}

		seen := make(map[string]bool)
		var specs []PortSpec
		for _, opt := range options {
			for _, out := range outputs {
				specs = append(specs, PortSpec{Name: SwitchInput(opt, out), Optional: true})
			}
		}
		for _, out := range outputs {
			specs = append(specs, PortSpec{Name: out, Output: true})
		}
		for _, s := range specs {
			if err := validPortName(s.Name); err != nil {
				return topologyErr("add_switch", name, s.Name, err)
			}
			if seen[s.Name] {
				return topologyErr("add_switch", name, s.Name, ErrDuplicatePort)
			}
			seen[s.Name] = true
		}

		n := newNode(name, KindSwitch)
		n.options = append([]string(nil), options...)
		n.outputs = append([]string(nil), outputs...)
		idx := p.appendNode(n)
		for _, s := range specs {
			if _, err := p.addPort("add_switch", idx, s); err != nil {
				return err
			}
		}
		p.applySelection(n, options[0])
		p.logger.Debug("switch added", "node", name, "options", options, "selected", n.selected)
		return nil
	})
}

// Link connects srcNode.srcPort to dstNode.dstPort. The root node is addressed as "".
func (p *Pipeline) Link(srcNode, srcPort, dstNode, dstPort string) error {
	return p.mutate(func() error {
		return p.link(srcNode, srcPort, dstNode, dstPort)
	})
}

// LinkSpec connects two ports described as "node.port->node.port". An endpoint without a
// node part is a pipeline parameter.
func (p *Pipeline) LinkSpec(spec string) error {
	parts := strings.Split(spec, "->")
	if len(parts) != 2 {
		return topologyErr("link", "", "", fmt.Errorf("%w: expected 'node.port->node.port', got %q", ErrInvalidLink, spec))
	}
	srcNode, srcPort := ParseEndpoint(strings.TrimSpace(parts[0]))
	dstNode, dstPort := ParseEndpoint(strings.TrimSpace(parts[1]))
	return p.Link(srcNode, srcPort, dstNode, dstPort)
}

// ParseEndpoint splits "node.port" at the first dot. Without a dot the endpoint is the
// pipeline parameter of that name.
func ParseEndpoint(s string) (nodeName, portName string) {
	if i := strings.Index(s, "."); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

func (p *Pipeline) link(srcNode, srcPort, dstNode, dstPort string) error {
	src, err := p.lookupPort("link", srcNode, srcPort)
	if err != nil {
		return err
	}
	dst, err := p.lookupPort("link", dstNode, dstPort)
	if err != nil {
		return err
	}
	if srcNode == dstNode {
		return topologyErr("link", srcNode, srcPort, fmt.Errorf("%w: self link to %s", ErrInvalidLink, qualify(dstNode, dstPort)))
	}
	if !p.isProducer(src) {
		return topologyErr("link", srcNode, srcPort, fmt.Errorf("%w: cannot link from a consumer port", ErrInvalidLink))
	}
	if p.isProducer(dst) {
		return topologyErr("link", dstNode, dstPort, fmt.Errorf("%w: cannot link to a producer port", ErrInvalidLink))
	}
	if !p.links.add(src, dst) {
		return topologyErr("link", srcNode, srcPort, fmt.Errorf("%w: already linked to %s", ErrInvalidLink, qualify(dstNode, dstPort)))
	}
	p.logger.Debug("link added", "from", qualify(srcNode, srcPort), "to", qualify(dstNode, dstPort))
	return nil
}

// Export declares a pipeline parameter named as (the port name when as is empty) that
// mirrors nodeName.portName, and links the two.
func (p *Pipeline) Export(nodeName, portName, as string) error {
	return p.mutate(func() error {
		return p.export(nodeName, portName, as)
	})
}

func (p *Pipeline) export(nodeName, portName, as string) error {
	if nodeName == "" {
		return topologyErr("export", nodeName, portName, fmt.Errorf("%w: cannot export a pipeline parameter", ErrInvalidLink))
	}
	idx, err := p.lookupPort("export", nodeName, portName)
	if err != nil {
		return err
	}
	if as == "" {
		as = portName
	}
	if err := validPortName(as); err != nil {
		return topologyErr("export", "", as, err)
	}
	pt := p.ports[idx]
	if _, err := p.addPort("export", rootIndex, PortSpec{Name: as, Optional: pt.optional, Output: pt.output}); err != nil {
		return err
	}
	if pt.output {
		return p.link(nodeName, portName, "", as)
	}
	return p.link("", as, nodeName, portName)
}

// ExportUnlinked exports every mandatory process port that has no link and was not excluded
// with WithoutExport, under its own name.
func (p *Pipeline) ExportUnlinked() error {
	return p.mutate(func() error {
		var pending []Endpoint
		names := make(map[string]string)
		for _, n := range p.nodes {
			if n.kind != KindProcess && n.kind != KindSubPipeline {
				continue
			}
			for _, idx := range n.ports {
				pt := p.ports[idx]
				if pt.optional || n.noExport[pt.name] || p.links.linked(idx) {
					continue
				}
				if _, exists := p.nodes[rootIndex].portIndex[pt.name]; exists {
					return topologyErr("export_unlinked", n.name, pt.name, ErrDuplicatePort)
				}
				if other, exists := names[pt.name]; exists {
					return topologyErr("export_unlinked", n.name, pt.name, fmt.Errorf("%w: also unlinked on %s", ErrDuplicatePort, other))
				}
				names[pt.name] = n.name
				pending = append(pending, Endpoint{Node: n.name, Port: pt.name})
			}
		}
		for _, e := range pending {
			if err := p.export(e.Node, e.Port, ""); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetEnabled toggles a node. The root node is addressed as "".
func (p *Pipeline) SetEnabled(nodeName string, enabled bool) error {
	return p.mutate(func() error {
		idx, ok := p.byName[nodeName]
		if !ok {
			return topologyErr("set_enabled", nodeName, "", ErrUnknownNode)
		}
		p.nodes[idx].enabled = enabled
		return nil
	})
}

// SetPortEnabled toggles a single port. Switch inputs are driven by Select instead.
func (p *Pipeline) SetPortEnabled(nodeName, portName string, enabled bool) error {
	return p.mutate(func() error {
		idx, err := p.lookupPort("set_port_enabled", nodeName, portName)
		if err != nil {
			return err
		}
		if n := p.nodes[p.ports[idx].node]; n.kind == KindSwitch && !p.ports[idx].output {
			return topologyErr("set_port_enabled", nodeName, portName, fmt.Errorf("%w: switch inputs follow the selection", ErrInvalidLink))
		}
		p.ports[idx].enabled = enabled
		return nil
	})
}

// Select routes option through the named switch: the previous option's inputs are
// disabled, the new option's inputs enabled, and activation runs once.
func (p *Pipeline) Select(switchName, option string) error {
	return p.mutate(func() error {
		n, err := p.lookupSwitch("select", switchName)
		if err != nil {
			return err
		}
		if !contains(n.options, option) {
			return topologyErr("select", switchName, "", fmt.Errorf("%w: %q (options: %s)", ErrUnknownOption, option, strings.Join(n.options, ", ")))
		}
		p.applySelection(n, option)
		p.logger.Debug("switch selection changed", "node", switchName, "selected", option)
		return nil
	})
}

// Selected returns the current option of the named switch.
func (p *Pipeline) Selected(switchName string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n, err := p.lookupSwitch("selected", switchName)
	if err != nil {
		return "", err
	}
	return n.selected, nil
}

// IsActivated reports whether the named node is currently activated.
func (p *Pipeline) IsActivated(nodeName string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idx, ok := p.byName[nodeName]
	return ok && p.nodes[idx].activated
}

// IsPortActivated reports whether the named port is currently activated.
func (p *Pipeline) IsPortActivated(nodeName, portName string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idx, err := p.lookupPort("is_port_activated", nodeName, portName)
	return err == nil && p.ports[idx].activated
}

// IsHidden reports whether the named pipeline parameter should currently be hidden from
// users because nothing activated uses it.
func (p *Pipeline) IsHidden(param string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idx, err := p.lookupPort("is_hidden", "", param)
	return err == nil && p.ports[idx].hidden
}

// Activate forces an activation run. Every mutation already triggers one; this is for
// callers that want the notifications again.
func (p *Pipeline) Activate() {
	_ = p.mutate(func() error { return nil })
}

func (p *Pipeline) applySelection(n *node, option string) {
	for _, opt := range n.options {
		for _, out := range n.outputs {
			p.ports[n.portIndex[SwitchInput(opt, out)]].enabled = opt == option
		}
	}
	n.selected = option
}

func (p *Pipeline) checkNewNode(op, name string) error {
	if name == "" || strings.ContainsAny(name, ".") || strings.Contains(name, "->") {
		return topologyErr(op, name, "", fmt.Errorf("%w: node names must be non-empty and contain no '.'", ErrInvalidName))
	}
	if _, exists := p.byName[name]; exists {
		return topologyErr(op, name, "", ErrDuplicateNode)
	}
	return nil
}

func validPortName(name string) error {
	if name == "" || strings.ContainsAny(name, ".") || strings.Contains(name, "->") {
		return fmt.Errorf("%w: port names must be non-empty and contain no '.'", ErrInvalidName)
	}
	return nil
}

func (p *Pipeline) appendNode(n *node) int {
	idx := len(p.nodes)
	p.nodes = append(p.nodes, n)
	p.byName[n.name] = idx
	return idx
}

func (p *Pipeline) addPort(op string, nodeIdx int, s PortSpec) (int, error) {
	n := p.nodes[nodeIdx]
	if _, exists := n.portIndex[s.Name]; exists {
		return 0, topologyErr(op, n.name, s.Name, ErrDuplicatePort)
	}
	idx := len(p.ports)
	p.ports = append(p.ports, &port{
		name:     s.Name,
		node:     nodeIdx,
		enabled:  true,
		optional: s.Optional,
		output:   s.Output,
	})
	n.ports = append(n.ports, idx)
	n.portIndex[s.Name] = idx
	return idx, nil
}

func (p *Pipeline) lookupPort(op, nodeName, portName string) (int, error) {
	nodeIdx, ok := p.byName[nodeName]
	if !ok {
		return 0, topologyErr(op, nodeName, "", ErrUnknownNode)
	}
	idx, ok := p.nodes[nodeIdx].portIndex[portName]
	if !ok {
		return 0, topologyErr(op, nodeName, portName, ErrUnknownPort)
	}
	return idx, nil
}

func (p *Pipeline) lookupSwitch(op, name string) (*node, error) {
	idx, ok := p.byName[name]
	if !ok {
		return nil, topologyErr(op, name, "", ErrUnknownNode)
	}
	n := p.nodes[idx]
	if n.kind != KindSwitch {
		return nil, topologyErr(op, name, "", ErrNotSwitch)
	}
	return n, nil
}

// Resolve walks a dotted node path such as "fx.blur" through SubPipeline nodes and returns
// the pipeline owning the last element together with its local name.
func (p *Pipeline) Resolve(path string) (*Pipeline, string, error) {
	parts := strings.Split(path, ".")
	cur := p
	for _, part := range parts[:len(parts)-1] {
		cur.mu.RLock()
		idx, ok := cur.byName[part]
		var inner *Pipeline
		if ok {
			inner = cur.nodes[idx].inner
		}
		cur.mu.RUnlock()
		if !ok {
			return nil, "", topologyErr("resolve", part, "", ErrUnknownNode)
		}
		if inner == nil {
			return nil, "", topologyErr("resolve", part, "", fmt.Errorf("%w: not a sub-pipeline", ErrUnknownNode))
		}
		cur = inner
	}
	return cur, parts[len(parts)-1], nil
}

// isProducer reports whether values flow out of the port inside this pipeline. Root ports
// are inverted: a pipeline input produces for the nodes it feeds.
func (p *Pipeline) isProducer(idx int) bool {
	pt := p.ports[idx]
	if pt.node == rootIndex {
		return !pt.output
	}
	return pt.output
}

// contains reports whether target is nested anywhere inside p.
func (p *Pipeline) contains(target *Pipeline) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, n := range p.nodes {
		if n.inner == nil {
			continue
		}
		if n.inner == target || n.inner.contains(target) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
