package analytics

// WCC computes weakly connected components over the given pairs,
// ignoring direction. Every projected node gets a component id, nodes
// without pair edges form singleton components.
func WCC(p *Projection, pairs []SimilarPair) map[string]int {
	parent := make([]int, len(p.ids))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			// Attach the larger root index under the smaller one so
			// component ids follow insertion order.
			if ra > rb {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	for _, pair := range pairs {
		si, ok := p.index[pair.Source]
		if !ok {
			continue
		}
		ti, ok := p.index[pair.Target]
		if !ok {
			continue
		}
		union(si, ti)
	}

	// Compact root indexes into consecutive component ids.
	componentOf := make(map[int]int)
	components := make(map[string]int, len(p.ids))
	for i, id := range p.ids {
		root := find(i)
		component, ok := componentOf[root]
		if !ok {
			component = len(componentOf)
			componentOf[root] = component
		}
		components[id] = component
	}

	return components
}
