package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/graphmed/graphmed/core/analytics"
	"github.com/graphmed/graphmed/database"
	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/llm"
	"github.com/graphmed/graphmed/model"
)

// DedupeStore is the entity access the deduplicator needs.
type DedupeStore interface {
	SelectEntitiesForDedupe(ctx context.Context) ([]database.DedupeEntity, error)
	MergeEntities(ctx context.Context, groups [][]string) error
}

// Deduplicator finds near-identical entities by embedding similarity and
// edit distance, lets the LLM arbitrate which of them really are the
// same, and merges the survivors.
type Deduplicator struct {
	store    DedupeStore
	chatJSON ChatFunc
	options  model.Options
	log      *slog.Logger
}

// NewDeduplicator creates a new deduplicator stage.
func NewDeduplicator(store DedupeStore, chatJSON ChatFunc, options model.Options, logger *slog.Logger) (*Deduplicator, error) {
	if store == nil {
		return nil, helper.NewError("deduplicator validation", fmt.Errorf("store is nil"))
	}
	if chatJSON == nil {
		return nil, helper.NewError("deduplicator validation", fmt.Errorf("chat function is nil"))
	}

	return &Deduplicator{store: store, chatJSON: chatJSON, options: options, log: logger}, nil
}

// Run executes one full deduplication pass and returns the merged
// groups. Re-embedding of the merged nodes is left to the caller.
func (d *Deduplicator) Run(ctx context.Context) ([][]string, error) {
	entities, err := d.store.SelectEntitiesForDedupe(ctx)
	if err != nil {
		return nil, helper.NewError("select entities for dedupe", err)
	}

	candidates := d.findCandidates(entities)
	if len(candidates) == 0 {
		d.log.Info("No duplicate candidates found")
		return nil, nil
	}

	merged, err := d.arbitrate(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		d.log.Info("LLM arbitration kept all candidates separate")
		return nil, nil
	}

	err = d.store.MergeEntities(ctx, merged)
	if err != nil {
		return nil, helper.NewError("merge entities", err)
	}

	d.log.Info("Deduplicated entities",
		slog.Int("candidates", len(candidates)),
		slog.Int("merged", len(merged)))

	return merged, nil
}

// findCandidates builds the in-memory projection, links entities whose
// embeddings are close, groups them into connected components and keeps
// the members that are also close in writing and share a concrete label.
func (d *Deduplicator) findCandidates(entities []database.DedupeEntity) [][]string {
	projection := analytics.NewProjection("entities")
	defer projection.Drop()

	byID := map[string]database.DedupeEntity{}
	for _, entity := range entities {
		projection.AddNode(entity.ID, entity.Embedding)
		byID[entity.ID] = entity
	}

	pairs := analytics.KNN(projection, d.options.KNNTopK, d.options.SimilarityCutoff)
	components := analytics.WCC(projection, pairs)

	byComponent := map[int][]string{}
	for id, component := range components {
		byComponent[component] = append(byComponent[component], id)
	}

	groups := [][]string{}
	for _, members := range byComponent {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		groups = append(groups, d.refine(members, byID)...)
	}

	return mergeOverlapping(groups)
}

// refine keeps, for every member, the component members within the edit
// distance bound that also share a concrete label with another one.
func (d *Deduplicator) refine(members []string, byID map[string]database.DedupeEntity) [][]string {
	groups := [][]string{}
	for _, member := range members {
		near := []string{}
		for _, other := range members {
			if levenshtein(strings.ToLower(member), strings.ToLower(other)) < d.options.WordEditDistance {
				near = append(near, other)
			}
		}
		if len(near) < 2 {
			continue
		}

		filtered := []string{}
		for _, id := range near {
			if sharesConcreteLabel(id, near, byID) {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) > 1 {
			groups = append(groups, filtered)
		}
	}
	return groups
}

// sharesConcreteLabel reports whether the entity has a concrete label in
// common with at least one other group member.
func sharesConcreteLabel(id string, group []string, byID map[string]database.DedupeEntity) bool {
	for _, other := range group {
		if other == id {
			continue
		}
		for _, label := range byID[id].Labels {
			if label == "__Entity__" || label == model.UnknownLabel {
				continue
			}
			for _, otherLabel := range byID[other].Labels {
				if label == otherLabel {
					return true
				}
			}
		}
	}
	return false
}

// mergeOverlapping unions groups that share a member, sorts them and
// drops groups fully contained in another.
func mergeOverlapping(groups [][]string) [][]string {
	merged := make([][]string, 0, len(groups))
	for _, group := range groups {
		acc := append([]string{}, group...)
		for _, other := range groups {
			if intersects(acc, other) {
				acc = union(acc, other)
			}
		}
		sort.Strings(acc)
		merged = append(merged, acc)
	}

	distinct := [][]string{}
	seen := map[string]bool{}
	for _, group := range merged {
		key := strings.Join(group, "\x00")
		if !seen[key] {
			seen[key] = true
			distinct = append(distinct, group)
		}
	}

	result := [][]string{}
	for i, group := range distinct {
		contained := false
		for j, other := range distinct {
			if i != j && containsAll(other, group) {
				contained = true
				break
			}
		}
		if !contained {
			result = append(result, group)
		}
	}

	return result
}

func intersects(a []string, b []string) bool {
	inA := map[string]bool{}
	for _, x := range a {
		inA[x] = true
	}
	for _, x := range b {
		if inA[x] {
			return true
		}
	}
	return false
}

func union(a []string, b []string) []string {
	inA := map[string]bool{}
	for _, x := range a {
		inA[x] = true
	}
	for _, x := range b {
		if !inA[x] {
			a = append(a, x)
			inA[x] = true
		}
	}
	return a
}

func containsAll(outer []string, inner []string) bool {
	inOuter := map[string]bool{}
	for _, x := range outer {
		inOuter[x] = true
	}
	if len(inner) >= len(outer) {
		return false
	}
	for _, x := range inner {
		if !inOuter[x] {
			return false
		}
	}
	return true
}

// levenshtein computes the edit distance between two strings in runes.
func levenshtein(a string, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	previous := make([]int, len(rb)+1)
	current := make([]int, len(rb)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		current[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			current[j] = min(previous[j]+1, min(current[j-1]+1, previous[j-1]+cost))
		}
		previous, current = current, previous
	}

	return previous[len(rb)]
}

// mergeArbitration is the JSON shape the merge prompt asks for.
type mergeArbitration struct {
	MergeEntities [][]string `json:"merge_entities"`
}

// arbitrate asks the LLM, per candidate group, which members really are
// the same entity. Failed or unparseable answers drop the group.
func (d *Deduplicator) arbitrate(ctx context.Context, candidates [][]string) ([][]string, error) {
	inputs := make([]string, 0, len(candidates))
	for _, group := range candidates {
		inputs = append(inputs, MergeUserPrompt(group))
	}

	results := llm.Batch(ctx, inputs, d.options.MaxConcurrency, func(ctx context.Context, input string) (string, error) {
		return d.chatJSON(ctx, MergeSystemPrompt, input)
	})

	merged := [][]string{}
	for _, result := range results {
		if result.Err != nil {
			d.log.Warn("Merge arbitration failed, keeping candidates separate",
				slog.String("error", result.Err.Error()))
			continue
		}

		arbitration := mergeArbitration{}
		err := json.Unmarshal([]byte(result.Output), &arbitration)
		if err != nil {
			d.log.Warn("Unparseable merge arbitration answer",
				slog.String("error", err.Error()))
			continue
		}

		for _, group := range arbitration.MergeEntities {
			if len(group) > 1 {
				merged = append(merged, group)
			}
		}
	}

	return merged, nil
}
