// Package analytics provides the in-memory graph projections and the
// algorithms that run over them: kNN over embeddings, weakly connected
// components and speaker-listener label propagation. Projections are
// created, used and dropped by a single driver goroutine.
package analytics

// Projection is a named in-memory snapshot of entity nodes with optional
// embeddings and an undirected, weight-aggregated adjacency.
type Projection struct {
	name       string
	ids        []string
	index      map[string]int
	embeddings [][]float32
	neighbors  []map[int]float64
}

// NewProjection creates an empty projection.
func NewProjection(name string) *Projection {
	return &Projection{
		name:  name,
		index: make(map[string]int),
	}
}

// Name returns the projection name.
func (p *Projection) Name() string {
	return p.name
}

// Size returns the number of projected nodes.
func (p *Projection) Size() int {
	return len(p.ids)
}

// IDs returns the projected node ids in insertion order.
func (p *Projection) IDs() []string {
	return p.ids
}

// AddNode adds a node with an optional embedding. Adding an existing id
// replaces its embedding.
func (p *Projection) AddNode(id string, embedding []float32) {
	if i, ok := p.index[id]; ok {
		p.embeddings[i] = embedding
		return
	}
	p.index[id] = len(p.ids)
	p.ids = append(p.ids, id)
	p.embeddings = append(p.embeddings, embedding)
	p.neighbors = append(p.neighbors, nil)
}

// AddRelationship adds an undirected edge between two projected nodes.
// Repeated edges between the same pair aggregate their weight, which
// realises a count aggregation when weight is 1.
func (p *Projection) AddRelationship(source string, target string, weight float64) {
	si, ok := p.index[source]
	if !ok {
		return
	}
	ti, ok := p.index[target]
	if !ok || si == ti {
		return
	}
	if p.neighbors[si] == nil {
		p.neighbors[si] = make(map[int]float64)
	}
	if p.neighbors[ti] == nil {
		p.neighbors[ti] = make(map[int]float64)
	}
	p.neighbors[si][ti] += weight
	p.neighbors[ti][si] += weight
}

// Drop releases the projected data.
func (p *Projection) Drop() {
	p.ids = nil
	p.index = map[string]int{}
	p.embeddings = nil
	p.neighbors = nil
}
