package workflow

import "sort"

// OrderedNodes returns the nodes in depth-first pre-order from every head, in name order.
// Each node comes after its ancestors on the path that reached it. A node reachable along
// several head-rooted paths is returned once per path.
func (w *Workflow) OrderedNodes() []*Node {
	var ordered []*Node
	var visit func(name string)
	visit = func(name string) {
		ordered = append(ordered, w.nodes[name])
		for _, next := range sorted(w.out[name]) {
			visit(next)
		}
	}
	for _, name := range w.Head() {
		visit(name)
	}
	return ordered
}

// Topological returns every node exactly once, each after all of its ancestors. Among nodes
// that are ready at the same time the smallest name comes first.
func (w *Workflow) Topological() []*Node {
	pending := make(map[string]int, len(w.nodes))
	var ready []string
	for name := range w.nodes {
		pending[name] = len(w.in[name])
		if pending[name] == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]*Node, 0, len(w.nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, w.nodes[name])
		for _, next := range sorted(w.out[name]) {
			pending[next]--
			if pending[next] == 0 {
				ready = append(ready, next)
				sort.Strings(ready)
			}
		}
	}
	return ordered
}
