package pipeline

// activate recomputes every activation flag from the enable flags, switch selections and
// link topology, and returns the events to fire. Must be called with the write lock held.
func (p *Pipeline) activate() []Event {
	p.initialize()
	waves := p.propagate()
	sweeps := p.prune()
	visibilityChanged := p.project()

	activated, hidden := 0, 0
	for i, n := range p.nodes {
		if i != rootIndex && n.activated {
			activated++
		}
	}
	for _, idx := range p.nodes[rootIndex].ports {
		if p.ports[idx].hidden {
			hidden++
		}
	}
	p.logger.Debug("activation complete",
		"nodes", len(p.nodes)-1,
		"activated", activated,
		"hidden_params", hidden,
		"waves", waves,
		"sweeps", sweeps)
	p.instruments.ObserveActivation(p.name, activated, hidden)

	events := []Event{ActivationChanged}
	if visibilityChanged {
		events = append(events, VisibilityChanged)
	}
	return events
}

// initialize resets all derived state. Only the root keeps activation, gated by its own
// enable flags.
func (p *Pipeline) initialize() {
	root := p.nodes[rootIndex]
	root.activated = root.enabled
	for _, idx := range root.ports {
		p.ports[idx].activated = root.activated && p.ports[idx].enabled
	}
	for i, n := range p.nodes {
		if i == rootIndex {
			continue
		}
		n.activated = false
		for _, idx := range n.ports {
			p.ports[idx].activated = false
		}
	}
}

// required reports whether a consumer port must be fed for its node to run. The selected
// inputs of a switch are mandatory; its other inputs are disabled and ignored.
func (p *Pipeline) required(n *node, pt *port) bool {
	if n.kind == KindSwitch {
		return pt.enabled
	}
	return !pt.optional
}

// propagate runs forward waves until no node is queued, and returns the number of waves.
func (p *Pipeline) propagate() int {
	queue := make([]int, 0, len(p.nodes)-1)
	for i := range p.nodes {
		if i != rootIndex {
			queue = append(queue, i)
		}
	}

	waves := 0
	for len(queue) > 0 {
		waves++
		queued := make(map[int]bool)
		var next []int
		for _, i := range queue {
			for _, m := range p.check(i) {
				if !queued[m] {
					queued[m] = true
					next = append(next, m)
				}
			}
		}
		queue = next
	}
	return waves
}

// check tentatively activates node i. It returns the nodes its producers now feed through a
// consumer port that was not already live.
func (p *Pipeline) check(i int) []int {
	n := p.nodes[i]
	if !n.enabled {
		p.deactivate(n)
		return nil
	}

	n.activated = true
	for _, idx := range n.ports {
		pt := p.ports[idx]
		if p.isProducer(idx) {
			continue
		}
		pt.activated = pt.enabled && p.fed(idx)
		if !pt.activated && p.required(n, pt) {
			p.logger.Debug("node not runnable", "node", n.name, "port", pt.name)
			p.deactivate(n)
			return nil
		}
	}

	var targets []int
	for _, idx := range n.ports {
		pt := p.ports[idx]
		if !p.isProducer(idx) || !pt.enabled || len(p.links.linksTo(idx)) == 0 {
			continue
		}
		pt.activated = true
		for _, dst := range p.links.linksTo(idx) {
			q := p.ports[dst]
			if q.node == rootIndex || q.activated || !q.enabled {
				continue
			}
			targets = append(targets, q.node)
		}
	}
	return targets
}

// fed reports whether any port linked into idx is activated.
func (p *Pipeline) fed(idx int) bool {
	for _, src := range p.links.linksFrom(idx) {
		if p.ports[src].activated {
			return true
		}
	}
	return false
}

func (p *Pipeline) deactivate(n *node) {
	n.activated = false
	for _, idx := range n.ports {
		p.ports[idx].activated = false
	}
}

// prune demotes activated nodes whose producers reach no live consumer, until a sweep
// changes nothing. It returns the number of sweeps.
func (p *Pipeline) prune() int {
	var queue []int
	for i, n := range p.nodes {
		if i != rootIndex && n.activated {
			queue = append(queue, i)
		}
	}

	sweeps := 0
	for len(queue) > 0 {
		sweeps++
		queued := make(map[int]bool)
		var next []int
		for _, i := range queue {
			n := p.nodes[i]
			if !n.activated || p.useful(n) {
				continue
			}
			p.logger.Debug("node pruned, outputs unused", "node", n.name)

			var feeders []int
			for _, idx := range n.ports {
				if p.isProducer(idx) || !p.ports[idx].activated {
					continue
				}
				for _, src := range p.links.linksFrom(idx) {
					if f := p.ports[src].node; f != rootIndex && p.nodes[f].activated {
						feeders = append(feeders, f)
					}
				}
			}
			p.deactivate(n)
			for _, f := range feeders {
				if !queued[f] {
					queued[f] = true
					next = append(next, f)
				}
			}
		}
		queue = next
	}
	return sweeps
}

// useful reports whether n has no producer ports or one of its activated producers reaches
// an activated consumer.
func (p *Pipeline) useful(n *node) bool {
	hasProducer := false
	for _, idx := range n.ports {
		if !p.isProducer(idx) {
			continue
		}
		hasProducer = true
		if !p.ports[idx].activated {
			continue
		}
		for _, dst := range p.links.linksTo(idx) {
			if p.ports[dst].activated {
				return true
			}
		}
	}
	return !hasProducer
}

// project keeps a root port activated only while one of its links touches a live node
// port, and derives the hidden flags. It reports whether any hidden flag flipped.
func (p *Pipeline) project() bool {
	changed := false
	for _, idx := range p.nodes[rootIndex].ports {
		pt := p.ports[idx]
		if pt.activated && !p.touchesLive(idx) {
			pt.activated = false
		}
		hidden := !pt.activated
		if hidden != pt.hidden {
			pt.hidden = hidden
			changed = true
		}
	}
	return changed
}

func (p *Pipeline) touchesLive(idx int) bool {
	for _, other := range p.links.linksTo(idx) {
		if p.ports[other].activated {
			return true
		}
	}
	for _, other := range p.links.linksFrom(idx) {
		if p.ports[other].activated {
			return true
		}
	}
	return false
}
