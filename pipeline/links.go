package pipeline

// linkRegistry stores directed port-to-port links as index pairs, indexed both forward
// (to) and backward (from). Per-port adjacency keeps insertion order so every traversal
// of the registry is deterministic.
type linkRegistry struct {
	to    map[int][]int
	from  map[int][]int
	pairs [][2]int
}

func newLinkRegistry() linkRegistry {
	return linkRegistry{
		to:   make(map[int][]int),
		from: make(map[int][]int),
	}
}

// add registers src->dst. It reports false if the link already exists.
func (r *linkRegistry) add(src, dst int) bool {
	if r.has(src, dst) {
		return false
	}
	r.to[src] = append(r.to[src], dst)
	r.from[dst] = append(r.from[dst], src)
	r.pairs = append(r.pairs, [2]int{src, dst})
	return true
}

func (r *linkRegistry) has(src, dst int) bool {
	for _, d := range r.to[src] {
		if d == dst {
			return true
		}
	}
	return false
}

// linksTo returns the ports src feeds.
func (r *linkRegistry) linksTo(src int) []int {
	return r.to[src]
}

// linksFrom returns the ports feeding dst.
func (r *linkRegistry) linksFrom(dst int) []int {
	return r.from[dst]
}

// linked reports whether the port takes part in any link.
func (r *linkRegistry) linked(p int) bool {
	return len(r.to[p]) > 0 || len(r.from[p]) > 0
}
