package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/llm"
	"github.com/graphmed/graphmed/model"
)

// summaryLevels selects which community levels get a summary.
var summaryLevels = []int{0, 1}

// tokensPerRune estimates the token cost of mixed Chinese and English
// community text without loading a tokenizer for the chat model.
const tokensPerRune = 0.6

// SummaryStore is the graph access the summarizer needs.
type SummaryStore interface {
	SelectCommunityInfos(ctx context.Context, levels []int, minSize int) ([]*model.CommunityInfo, error)
	StoreSummaries(ctx context.Context, summaries map[string]string) error
}

// Summarizer renders each community subgraph as text and asks the LLM
// for a natural language summary.
type Summarizer struct {
	store   SummaryStore
	chat    ChatFunc
	options model.Options
	log     *slog.Logger
}

// NewSummarizer creates a new community summarizer stage.
func NewSummarizer(store SummaryStore, chat ChatFunc, options model.Options, logger *slog.Logger) (*Summarizer, error) {
	if store == nil {
		return nil, helper.NewError("summarizer validation", fmt.Errorf("store is nil"))
	}
	if chat == nil {
		return nil, helper.NewError("summarizer validation", fmt.Errorf("chat function is nil"))
	}

	return &Summarizer{store: store, chat: chat, options: options, log: logger}, nil
}

// Run summarizes every community large enough and stores the summaries.
// Failed summaries are logged and skipped. Returns how many communities
// were summarized.
func (s *Summarizer) Run(ctx context.Context) (int, error) {
	infos, err := s.store.SelectCommunityInfos(ctx, summaryLevels, s.options.MinCommunitySize)
	if err != nil {
		return 0, helper.NewError("select community infos", err)
	}
	if len(infos) == 0 {
		s.log.Info("No communities to summarize")
		return 0, nil
	}

	inputs := make([]string, 0, len(infos))
	for _, info := range infos {
		inputs = append(inputs, CommunityUserPrompt(prepareCommunityString(info, s.options.SummaryTokenBudget)))
	}

	results := llm.Batch(ctx, inputs, s.options.MaxConcurrency, func(ctx context.Context, input string) (string, error) {
		return s.chat(ctx, CommunitySystemPrompt, input)
	})

	summaries := map[string]string{}
	for _, result := range results {
		info := infos[result.Index]
		if result.Err != nil {
			s.log.Warn("Community summary failed, skipping",
				slog.String("communityId", info.ID),
				slog.String("error", result.Err.Error()))
			continue
		}
		summaries[info.ID] = strings.TrimSpace(result.Output)
	}

	if len(summaries) == 0 {
		return 0, nil
	}

	err = s.store.StoreSummaries(ctx, summaries)
	if err != nil {
		return 0, err
	}

	s.log.Info("Summarized communities",
		slog.Int("communities", len(infos)),
		slog.Int("summaries", len(summaries)))

	return len(summaries), nil
}

// prepareCommunityString renders the community subgraph as the node and
// relationship listing the summary prompt expects. When the full listing
// exceeds the token budget, relationships are emitted by descending
// degree priority together with their not yet emitted endpoints until
// the budget would overflow, and any remaining budget is filled with
// leftover entities.
func prepareCommunityString(info *model.CommunityInfo, tokenBudget int) string {
	text := renderCommunity(info.Nodes, info.Relationships)
	if estimateTokens(text) <= tokenBudget {
		return text
	}

	degrees := map[string]int{}
	for _, relationship := range info.Relationships {
		degrees[relationship.Source]++
		degrees[relationship.Target]++
	}

	prioritized := append([]*model.Relationship{}, info.Relationships...)
	sort.SliceStable(prioritized, func(i, j int) bool {
		return degrees[prioritized[i].Source]+degrees[prioritized[i].Target] >
			degrees[prioritized[j].Source]+degrees[prioritized[j].Target]
	})

	nodesByID := map[string]*model.Node{}
	for _, node := range info.Nodes {
		nodesByID[node.ID] = node
	}

	nodes := []*model.Node{}
	relationships := []*model.Relationship{}
	emitted := map[string]bool{}
	for i, relationship := range prioritized {
		endpoints := []string{relationship.Source}
		if relationship.Target != relationship.Source {
			endpoints = append(endpoints, relationship.Target)
		}

		candidateNodes := nodes
		for _, id := range endpoints {
			if node, ok := nodesByID[id]; ok && !emitted[id] {
				candidateNodes = append(candidateNodes, node)
			}
		}
		candidateRelationships := append(relationships, relationship)

		// The top priority relationship is always part of the context,
		// even when the budget cannot hold it.
		if i > 0 && estimateTokens(renderCommunity(candidateNodes, candidateRelationships)) > tokenBudget {
			break
		}

		nodes = candidateNodes
		relationships = candidateRelationships
		for _, id := range endpoints {
			emitted[id] = true
		}
	}

	for _, node := range info.Nodes {
		if emitted[node.ID] {
			continue
		}
		candidateNodes := append(nodes, node)
		if estimateTokens(renderCommunity(candidateNodes, relationships)) > tokenBudget {
			break
		}
		nodes = candidateNodes
		emitted[node.ID] = true
	}

	return renderCommunity(nodes, relationships)
}

func renderCommunity(nodes []*model.Node, relationships []*model.Relationship) string {
	builder := strings.Builder{}

	builder.WriteString("Nodes are:\n")
	for _, node := range nodes {
		builder.WriteString(fmt.Sprintf("id: %v, type: %v", node.ID, node.Type))
		if node.Description != "" {
			builder.WriteString(fmt.Sprintf(", description: %v", node.Description))
		}
		builder.WriteString("\n")
	}

	builder.WriteString("\nRelationships are:\n")
	for _, relationship := range relationships {
		builder.WriteString(fmt.Sprintf("(%v)-[:%v]->(%v)", relationship.Source, relationship.Type, relationship.Target))
		if relationship.Description != "" {
			builder.WriteString(fmt.Sprintf(", description: %v", relationship.Description))
		}
		builder.WriteString("\n")
	}

	return builder.String()
}

func estimateTokens(text string) int {
	return int(float64(len([]rune(text))) * tokensPerRune)
}
