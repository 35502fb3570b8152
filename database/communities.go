package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/model"
)

// CommunitiesDBHandlerFunctions defines the interface for community graph
// operations.
type CommunitiesDBHandlerFunctions interface {
	WriteMemberships(ctx context.Context, level int, memberships map[string][]int) error
	ComputeRanks(ctx context.Context) error
	SelectCommunityInfos(ctx context.Context, levels []int, minSize int) ([]*model.CommunityInfo, error)
	StoreSummaries(ctx context.Context, summaries map[string]string) error
	SelectCommunitiesAtLevel(ctx context.Context, level int) ([]*model.Community, error)
}

// CommunitiesDBHandler writes and reads the community layer of the graph.
type CommunitiesDBHandler struct {
	graph Querier
	log   *slog.Logger
}

// NewCommunitiesDBHandler creates a new communities graph handler.
func NewCommunitiesDBHandler(graph Querier, logger *slog.Logger) (*CommunitiesDBHandler, error) {
	if graph == nil {
		return nil, helper.NewError("graph connection validation", fmt.Errorf("graph connection is nil"))
	}

	logger.Info("Initialized CommunitiesDBHandler")

	return &CommunitiesDBHandler{graph: graph, log: logger}, nil
}

// WriteMemberships merges one community node per discovered id and links
// every member entity with IN_COMMUNITY. Community ids have the form
// "<level>-<number>".
func (h *CommunitiesDBHandler) WriteMemberships(ctx context.Context, level int, memberships map[string][]int) error {
	data := make([]map[string]any, 0, len(memberships))
	for entityID, communityIDs := range memberships {
		ids := make([]string, 0, len(communityIDs))
		for _, communityID := range communityIDs {
			ids = append(ids, fmt.Sprintf("%v-%v", level, communityID))
		}
		data = append(data, map[string]any{"entity_id": entityID, "community_ids": ids})
	}

	err := h.graph.Write(ctx, `
		UNWIND $data AS row
		MATCH (e:`+"`__Entity__`"+` {id: row.entity_id})
		UNWIND row.community_ids AS communityId
		MERGE (c:`+"`__Community__`"+` {id: communityId})
		ON CREATE SET c.level = $level
		MERGE (e)-[:IN_COMMUNITY]->(c)`,
		map[string]any{"data": data, "level": level})
	if err != nil {
		return helper.NewError("write community memberships", err)
	}

	h.log.Info("Wrote community memberships", slog.Int("entities", len(memberships)))

	return nil
}

// ComputeRanks sets community_rank to the number of distinct chunks that
// mention any member entity, and weight to the member count.
func (h *CommunitiesDBHandler) ComputeRanks(ctx context.Context) error {
	err := h.graph.Write(ctx, `
		MATCH (c:`+"`__Community__`"+`)<-[:IN_COMMUNITY*]-(:`+"`__Entity__`"+`)<-[:MENTIONS]-(d:`+"`__Chunk__`"+`)
		WITH c, count(distinct d) AS rank
		SET c.community_rank = rank`, nil)
	if err != nil {
		return helper.NewError("compute community ranks", err)
	}

	err = h.graph.Write(ctx, `
		MATCH (c:`+"`__Community__`"+`)<-[:IN_COMMUNITY]-(e:`+"`__Entity__`"+`)
		WITH c, count(distinct e) AS members
		SET c.weight = members`, nil)
	if err != nil {
		return helper.NewError("compute community weights", err)
	}

	return nil
}

// SelectCommunityInfos returns the induced subgraph of every community at
// the given levels with more than minSize members.
func (h *CommunitiesDBHandler) SelectCommunityInfos(ctx context.Context, levels []int, minSize int) ([]*model.CommunityInfo, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (c:`+"`__Community__`"+`)<-[:IN_COMMUNITY*]-(e:`+"`__Entity__`"+`)
		WHERE c.level IN $levels
		WITH c, collect(e) AS nodes
		WHERE size(nodes) >= $min_size
		CALL apoc.path.subgraphAll(nodes[0], {whitelistNodes: nodes})
		YIELD relationships
		RETURN c.id AS communityId,
			[n IN nodes | {id: n.id, description: n.description, type: [l IN labels(n) WHERE l <> '__Entity__'][0]}] AS nodes,
			[r IN relationships | {start: startNode(r).id, type: type(r), end: endNode(r).id, description: r.description}] AS rels`,
		map[string]any{"levels": levels, "min_size": minSize})
	if err != nil {
		return nil, helper.NewError("select community infos", err)
	}

	infos := make([]*model.CommunityInfo, 0, len(rows))
	for _, row := range rows {
		info := &model.CommunityInfo{}
		info.ID, _ = row["communityId"].(string)
		if nodes, ok := row["nodes"].([]any); ok {
			for _, value := range nodes {
				nodeMap, ok := value.(map[string]any)
				if !ok {
					continue
				}
				node := &model.Node{}
				node.ID, _ = nodeMap["id"].(string)
				node.Type, _ = nodeMap["type"].(string)
				node.Description, _ = nodeMap["description"].(string)
				info.Nodes = append(info.Nodes, node)
			}
		}
		if rels, ok := row["rels"].([]any); ok {
			for _, value := range rels {
				relMap, ok := value.(map[string]any)
				if !ok {
					continue
				}
				relationship := &model.Relationship{}
				relationship.Source, _ = relMap["start"].(string)
				relationship.Target, _ = relMap["end"].(string)
				relationship.Type, _ = relMap["type"].(string)
				relationship.Description, _ = relMap["description"].(string)
				info.Relationships = append(info.Relationships, relationship)
			}
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// StoreSummaries writes the generated summary of each community.
func (h *CommunitiesDBHandler) StoreSummaries(ctx context.Context, summaries map[string]string) error {
	data := make([]map[string]any, 0, len(summaries))
	for communityID, summary := range summaries {
		data = append(data, map[string]any{"community": communityID, "summary": summary})
	}

	err := h.graph.Write(ctx, `
		UNWIND $data AS row
		MERGE (c:`+"`__Community__`"+` {id: row.community})
		SET c.summary = row.summary`,
		map[string]any{"data": data})
	if err != nil {
		return helper.NewError("store community summaries", err)
	}

	h.log.Info("Stored community summaries", slog.Int("communities", len(summaries)))

	return nil
}

// SelectCommunitiesAtLevel returns all summarized communities of one
// level ordered by id.
func (h *CommunitiesDBHandler) SelectCommunitiesAtLevel(ctx context.Context, level int) ([]*model.Community, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (c:`+"`__Community__`"+`)
		WHERE c.level = $level AND c.summary IS NOT NULL
		RETURN c.id AS id, c.level AS level, c.summary AS summary,
			coalesce(c.community_rank, 0) AS rank, coalesce(c.weight, 0.0) AS weight
		ORDER BY c.id`,
		map[string]any{"level": level})
	if err != nil {
		return nil, helper.NewError("select communities", err)
	}

	communities := make([]*model.Community, 0, len(rows))
	for _, row := range rows {
		community := &model.Community{}
		community.ID, _ = row["id"].(string)
		if level, ok := row["level"].(int64); ok {
			community.Level = int(level)
		}
		community.Summary, _ = row["summary"].(string)
		community.Rank, _ = row["rank"].(int64)
		switch weight := row["weight"].(type) {
		case float64:
			community.Weight = weight
		case int64:
			community.Weight = float64(weight)
		}
		communities = append(communities, community)
	}

	return communities, nil
}
