package model

// Community represents a group of entities discovered by label propagation.
// IDs have the form "<level>-<number>".
type Community struct {
	ID      string  `json:"id"`
	Level   int     `json:"level"`
	Summary string  `json:"summary"`
	Rank    int64   `json:"community_rank"`
	Weight  float64 `json:"weight"`
}

// CommunityInfo is the induced subgraph of one community,
// used to assemble the summarisation context.
type CommunityInfo struct {
	ID            string          `json:"community_id"`
	Nodes         []*Node         `json:"nodes"`
	Relationships []*Relationship `json:"rels"`
}
