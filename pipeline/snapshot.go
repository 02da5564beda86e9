package pipeline

// Snapshot is an immutable copy of a pipeline's topology and activation state, taken under
// the pipeline's read lock. Workflow builds and reports work on snapshots so they never
// observe a half-finished mutation.
type Snapshot struct {
	Name  string      `json:"name" yaml:"name"`
	Nodes []NodeState `json:"nodes" yaml:"nodes"`
	Links []Link      `json:"links" yaml:"links"`

	byName map[string]int
	to     map[Endpoint][]Endpoint
}

// NodeState is a node as seen in a Snapshot. The root node has the empty name.
type NodeState struct {
	Name      string      `json:"name" yaml:"name"`
	Kind      Kind        `json:"kind" yaml:"kind"`
	Enabled   bool        `json:"enabled" yaml:"enabled"`
	Activated bool        `json:"activated" yaml:"activated"`
	Ports     []PortState `json:"ports" yaml:"ports"`

	// Switch state.
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Outputs  []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Selected string   `json:"selected,omitempty" yaml:"selected,omitempty"`

	// Process is the handle the node was added with.
	Process Process `json:"-" yaml:"-"`
	// Inner is the nested pipeline of a KindSubPipeline node.
	Inner *Snapshot `json:"inner,omitempty" yaml:"inner,omitempty"`

	portIndex map[string]int
}

// PortState is a port as seen in a Snapshot.
type PortState struct {
	Name      string `json:"name" yaml:"name"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Optional  bool   `json:"optional" yaml:"optional"`
	Output    bool   `json:"output" yaml:"output"`
	Activated bool   `json:"activated" yaml:"activated"`
	Hidden    bool   `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// Endpoint addresses a port by node and port name.
type Endpoint struct {
	Node string `json:"node" yaml:"node"`
	Port string `json:"port" yaml:"port"`
}

// String renders the endpoint the way LinkSpec parses it.
func (e Endpoint) String() string {
	return qualify(e.Node, e.Port)
}

// Link is a directed port-to-port link.
type Link struct {
	From Endpoint `json:"from" yaml:"from"`
	To   Endpoint `json:"to" yaml:"to"`
}

// Snapshot copies the pipeline, recursing into nested pipelines.
func (p *Pipeline) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := &Snapshot{
		Name:   p.name,
		Nodes:  make([]NodeState, 0, len(p.nodes)),
		byName: make(map[string]int, len(p.nodes)),
		to:     make(map[Endpoint][]Endpoint),
	}
	for i, n := range p.nodes {
		ns := NodeState{
			Name:      n.name,
			Kind:      n.kind,
			Enabled:   n.enabled,
			Activated: n.activated,
			Ports:     make([]PortState, 0, len(n.ports)),
			Selected:  n.selected,
			Process:   n.process,
			portIndex: make(map[string]int, len(n.ports)),
		}
		if n.kind == KindSwitch {
			ns.Options = append([]string(nil), n.options...)
			ns.Outputs = append([]string(nil), n.outputs...)
		}
		for j, idx := range n.ports {
			pt := p.ports[idx]
			ns.Ports = append(ns.Ports, PortState{
				Name:      pt.name,
				Enabled:   pt.enabled,
				Optional:  pt.optional,
				Output:    pt.output,
				Activated: pt.activated,
				Hidden:    pt.hidden,
			})
			ns.portIndex[pt.name] = j
		}
		if n.inner != nil {
			ns.Inner = n.inner.Snapshot()
		}
		s.Nodes = append(s.Nodes, ns)
		s.byName[n.name] = i
	}
	for _, pair := range p.links.pairs {
		l := Link{From: p.endpoint(pair[0]), To: p.endpoint(pair[1])}
		s.Links = append(s.Links, l)
		s.to[l.From] = append(s.to[l.From], l.To)
	}
	return s
}

func (p *Pipeline) endpoint(idx int) Endpoint {
	pt := p.ports[idx]
	return Endpoint{Node: p.nodes[pt.node].name, Port: pt.name}
}

// Root returns the root node state.
func (s *Snapshot) Root() *NodeState {
	return &s.Nodes[rootIndex]
}

// Node returns the named node state.
func (s *Snapshot) Node(name string) (*NodeState, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return &s.Nodes[i], true
}

// Port returns the state of the port at e.
func (s *Snapshot) Port(e Endpoint) (*PortState, bool) {
	n, ok := s.Node(e.Node)
	if !ok {
		return nil, false
	}
	return n.Port(e.Port)
}

// LinksTo returns the endpoints the port at e feeds, in link order.
func (s *Snapshot) LinksTo(e Endpoint) []Endpoint {
	return s.to[e]
}

// Port returns the named port state.
func (n *NodeState) Port(name string) (*PortState, bool) {
	i, ok := n.portIndex[name]
	if !ok {
		return nil, false
	}
	return &n.Ports[i], true
}

// SwitchOutput returns the output a switch routes the given input port to, if that input
// belongs to the selected option.
func (n *NodeState) SwitchOutput(input string) (string, bool) {
	if n.Kind != KindSwitch {
		return "", false
	}
	for _, out := range n.Outputs {
		if input == SwitchInput(n.Selected, out) {
			return out, true
		}
	}
	return "", false
}
