package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/graphmed/graphmed/core/pipeline"
	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/llm"
	"github.com/graphmed/graphmed/model"
)

// NoAnswer is returned when no community summary is relevant to the
// question.
const NoAnswer = "不知道"

// GlobalStore is the graph access the global retriever needs.
type GlobalStore interface {
	SelectCommunitiesAtLevel(ctx context.Context, level int) ([]*model.Community, error)
}

// point is one scored finding of the map stage.
type point struct {
	Description string `json:"description"`
	Score       int    `json:"score"`
}

type mapAnswer struct {
	Points []point `json:"points"`
}

// GlobalRetriever answers a question by scoring every community summary
// against it in parallel and reducing the relevant points into one
// answer.
type GlobalRetriever struct {
	store    GlobalStore
	chatJSON pipeline.ChatFunc
	chat     pipeline.ChatFunc
	options  model.QueryOptions
	log      *slog.Logger
}

// NewGlobalRetriever creates a new global retriever. chatJSON must ask
// the provider for a JSON response, chat answers free-form.
func NewGlobalRetriever(store GlobalStore, chatJSON pipeline.ChatFunc, chat pipeline.ChatFunc, options model.QueryOptions, logger *slog.Logger) (*GlobalRetriever, error) {
	if store == nil {
		return nil, helper.NewError("global retriever validation", fmt.Errorf("store is nil"))
	}
	if chatJSON == nil || chat == nil {
		return nil, helper.NewError("global retriever validation", fmt.Errorf("chat function is nil"))
	}

	return &GlobalRetriever{store: store, chatJSON: chatJSON, chat: chat, options: options, log: logger}, nil
}

// Search runs the map stage over all summarized communities at the
// configured level and reduces the surviving points into the final
// answer.
func (r *GlobalRetriever) Search(ctx context.Context, question string) (string, error) {
	communities, err := r.store.SelectCommunitiesAtLevel(ctx, r.options.Level)
	if err != nil {
		return "", err
	}
	if len(communities) == 0 {
		r.log.Info("No summarized communities at level", slog.Int("level", r.options.Level))
		return NoAnswer, nil
	}

	points := r.mapCommunities(ctx, question, communities)
	if len(points) == 0 {
		return NoAnswer, nil
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Score > points[j].Score
	})

	report := strings.Builder{}
	for i, p := range points {
		report.WriteString(fmt.Sprintf("%v. %v (重要性评分: %v)\n", i+1, p.Description, p.Score))
	}

	answer, err := r.chat(ctx, ReduceSystemPrompt(r.options.ResponseType), ReduceUserPrompt(report.String(), question))
	if err != nil {
		return "", helper.NewError("global answer", err)
	}

	return answer, nil
}

// mapCommunities scores every community summary against the question and
// keeps the points at or above the relevance threshold. Failed or
// unparseable map calls drop their community.
func (r *GlobalRetriever) mapCommunities(ctx context.Context, question string, communities []*model.Community) []point {
	inputs := make([]string, 0, len(communities))
	for _, community := range communities {
		contextData := fmt.Sprintf("社区编号: %v\n社区摘要: %v", community.ID, community.Summary)
		inputs = append(inputs, MapUserPrompt(contextData, question))
	}

	results := llm.Batch(ctx, inputs, r.options.MaxConcurrency, func(ctx context.Context, input string) (string, error) {
		return r.chatJSON(ctx, MapSystemPrompt, input)
	})

	points := []point{}
	for _, result := range results {
		community := communities[result.Index]
		if result.Err != nil {
			r.log.Warn("Community map call failed, skipping",
				slog.String("communityId", community.ID),
				slog.String("error", result.Err.Error()))
			continue
		}

		answer := mapAnswer{}
		err := json.Unmarshal([]byte(result.Output), &answer)
		if err != nil {
			r.log.Warn("Unparseable community map answer",
				slog.String("communityId", community.ID),
				slog.String("error", err.Error()))
			continue
		}

		for _, p := range answer.Points {
			if p.Score >= r.options.ScoreThreshold {
				points = append(points, p)
			}
		}
	}

	r.log.Info("Mapped communities",
		slog.Int("communities", len(communities)),
		slog.Int("points", len(points)))

	return points
}
