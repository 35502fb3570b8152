package model

import "strings"

// UnknownLabel is the placeholder type for entities that only ever
// appeared as relationship endpoints.
const UnknownLabel = "未知"

// Node represents an extracted entity before it is merged into the graph.
type Node struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// SanitizedLabel returns the node type as a usable label with backticks
// removed.
func (n *Node) SanitizedLabel() string {
	return strings.ReplaceAll(n.Type, "`", "")
}

// Relationship represents a directed, weighted edge between two entities.
// Endpoints are referenced by entity id only.
type Relationship struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// GraphDocument is the extraction result for a single chunk.
type GraphDocument struct {
	ChunkID       string          `json:"chunk_id"`
	Nodes         []*Node         `json:"nodes"`
	Relationships []*Relationship `json:"relationships"`
}

// Empty reports whether the extraction produced no entities and no relationships.
func (g *GraphDocument) Empty() bool {
	return len(g.Nodes) == 0 && len(g.Relationships) == 0
}

// SanitizedType returns the relationship type as an edge label,
// uppercased with spaces replaced by underscores and backticks removed.
func (r *Relationship) SanitizedType() string {
	t := strings.ReplaceAll(r.Type, "`", "")
	t = strings.ReplaceAll(t, " ", "_")
	return strings.ToUpper(t)
}
