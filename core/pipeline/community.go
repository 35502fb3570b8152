package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphmed/graphmed/core/analytics"
	"github.com/graphmed/graphmed/database"
	"github.com/graphmed/graphmed/helper"
)

// sllpaThreshold prunes community labels a node heard in less than this
// share of propagation rounds.
const sllpaThreshold = 0.1

// communitySeed fixes the label propagation shuffle so repeated runs over
// the same graph produce the same communities.
const communitySeed = 42

// CommunityStore is the graph access the community builder needs.
type CommunityStore interface {
	SelectEntityEdges(ctx context.Context) ([]database.EntityEdge, error)
	WriteMemberships(ctx context.Context, level int, memberships map[string][]int) error
	ComputeRanks(ctx context.Context) error
}

// CommunityBuilder projects the entity graph into memory, detects
// overlapping communities with speaker-listener label propagation and
// writes the memberships and ranks back.
type CommunityBuilder struct {
	store         CommunityStore
	maxIterations int
	log           *slog.Logger
}

// NewCommunityBuilder creates a new community builder stage.
func NewCommunityBuilder(store CommunityStore, maxIterations int, logger *slog.Logger) (*CommunityBuilder, error) {
	if store == nil {
		return nil, helper.NewError("community builder validation", fmt.Errorf("store is nil"))
	}

	return &CommunityBuilder{store: store, maxIterations: maxIterations, log: logger}, nil
}

// Run detects communities at level 0 and returns how many entities were
// assigned to at least one community.
func (b *CommunityBuilder) Run(ctx context.Context) (int, error) {
	edges, err := b.store.SelectEntityEdges(ctx)
	if err != nil {
		return 0, helper.NewError("select entity edges", err)
	}
	if len(edges) == 0 {
		b.log.Info("No entity edges, skipping community detection")
		return 0, nil
	}

	projection := analytics.NewProjection("communities")
	defer projection.Drop()

	// Parallel edges aggregate into one undirected relationship whose
	// weight counts how often the pair was connected.
	for _, edge := range edges {
		projection.AddNode(edge.Source, nil)
		projection.AddNode(edge.Target, nil)
		projection.AddRelationship(edge.Source, edge.Target, 1)
	}

	memberships := analytics.SLLPA(projection, b.maxIterations, sllpaThreshold, communitySeed)
	if len(memberships) == 0 {
		b.log.Info("Label propagation found no communities")
		return 0, nil
	}

	err = b.store.WriteMemberships(ctx, 0, memberships)
	if err != nil {
		return 0, err
	}

	err = b.store.ComputeRanks(ctx)
	if err != nil {
		return 0, err
	}

	b.log.Info("Built communities",
		slog.Int("entities", len(memberships)),
		slog.Int("edges", len(edges)))

	return len(memberships), nil
}
