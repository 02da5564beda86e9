package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nomis52/pipeflow/pipeline"
)

var (
	// ErrCycle is matched by every *CycleError.
	ErrCycle = errors.New("workflow cycle")
	// ErrUnknownNode is returned when an edge names a node the workflow does not hold.
	ErrUnknownNode = errors.New("unknown workflow node")
	// ErrDuplicateNode is returned when a node name is added twice.
	ErrDuplicateNode = errors.New("duplicate workflow node")
)

// CycleError reports an edge that would make the workflow cyclic.
type CycleError struct {
	From string
	To   string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("edge %s -> %s would create a cycle", e.From, e.To)
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// Node is one process in a workflow.
type Node struct {
	// Name is the qualified name, "parent.child" for nodes inlined from sub-pipelines.
	Name string
	// Process is the handle the pipeline node was added with.
	Process pipeline.Process
}

// Edge is a direct dependency: From must run before To.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// String returns the edge as "from -> to".
func (e Edge) String() string {
	return e.From + " -> " + e.To
}

type set map[string]bool

// Workflow is an acyclic, transitively reduced DAG of nodes. It is not safe for concurrent
// mutation; a built Workflow is only read.
type Workflow struct {
	nodes map[string]*Node

	out set2
	in  set2

	ancestors   set2
	descendants set2

	head set
	tail set
}

// set2 maps a node name to a set of node names.
type set2 map[string]set

func (s set2) add(a, b string) {
	if s[a] == nil {
		s[a] = make(set)
	}
	s[a][b] = true
}

func (s set2) remove(a, b string) {
	delete(s[a], b)
}

// New returns an empty workflow.
func New() *Workflow {
	return &Workflow{
		nodes:       make(map[string]*Node),
		out:         make(set2),
		in:          make(set2),
		ancestors:   make(set2),
		descendants: make(set2),
		head:        make(set),
		tail:        make(set),
	}
}

// AddNode adds a node without edges. It starts out in both head and tail.
func (w *Workflow) AddNode(name string, proc pipeline.Process) error {
	if _, exists := w.nodes[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, name)
	}
	w.nodes[name] = &Node{Name: name, Process: proc}
	w.head[name] = true
	w.tail[name] = true
	return nil
}

// AddEdge records that u must run before v, keeping the edge registry transitively reduced.
// Adding an edge already implied by existing edges is a no-op.
func (w *Workflow) AddEdge(u, v string) error {
	for _, name := range []string{u, v} {
		if _, ok := w.nodes[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, name)
		}
	}

	if w.ancestors[v][u] {
		return nil
	}
	if u == v || w.descendants[v][u] {
		return &CycleError{From: u, To: v}
	}

	from := []string{u}
	for a := range w.ancestors[u] {
		from = append(from, a)
	}
	to := []string{v}
	for d := range w.descendants[v] {
		to = append(to, d)
	}
	for _, a := range from {
		for _, d := range to {
			w.out.remove(a, d)
			w.in.remove(d, a)
			w.ancestors.add(d, a)
			w.descendants.add(a, d)
		}
	}

	w.out.add(u, v)
	w.in.add(v, u)
	delete(w.head, v)
	delete(w.tail, u)
	return nil
}

// Node returns the named node.
func (w *Workflow) Node(name string) (*Node, bool) {
	n, ok := w.nodes[name]
	return n, ok
}

// Len returns the number of nodes.
func (w *Workflow) Len() int {
	return len(w.nodes)
}

// Nodes returns every node name in order.
func (w *Workflow) Nodes() []string {
	names := make([]string, 0, len(w.nodes))
	for name := range w.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Edges returns every direct edge, ordered by source then target.
func (w *Workflow) Edges() []Edge {
	var edges []Edge
	for _, from := range w.Nodes() {
		for _, to := range sorted(w.out[from]) {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// HasEdge reports whether the direct edge u->v exists.
func (w *Workflow) HasEdge(u, v string) bool {
	return w.out[u][v]
}

// IsAncestor reports whether a must run, directly or transitively, before d.
func (w *Workflow) IsAncestor(a, d string) bool {
	return w.ancestors[d][a]
}

// Head returns the names of nodes without incoming edges, in order.
func (w *Workflow) Head() []string {
	return sorted(w.head)
}

// Tail returns the names of nodes without outgoing edges, in order.
func (w *Workflow) Tail() []string {
	return sorted(w.tail)
}

// Successors returns the direct successors of the named node, in order.
func (w *Workflow) Successors(name string) []string {
	return sorted(w.out[name])
}

// Predecessors returns the direct predecessors of the named node, in order.
func (w *Workflow) Predecessors(name string) []string {
	return sorted(w.in[name])
}

func sorted(s set) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
