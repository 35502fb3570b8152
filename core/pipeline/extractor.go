package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/llm"
	"github.com/graphmed/graphmed/model"
)

var (
	entityPattern       = regexp.MustCompile(`\("entity"` + regexp.QuoteMeta(tupleDelimiter) + `"(.+?)"` + regexp.QuoteMeta(tupleDelimiter) + `"(.+?)"` + regexp.QuoteMeta(tupleDelimiter) + `"(.+?)"\)`)
	relationshipPattern = regexp.MustCompile(`\("relationship"` + regexp.QuoteMeta(tupleDelimiter) + `"(.+?)"` + regexp.QuoteMeta(tupleDelimiter) + `"(.+?)"` + regexp.QuoteMeta(tupleDelimiter) + `"(.+?)"` + regexp.QuoteMeta(tupleDelimiter) + `"(.+?)"` + regexp.QuoteMeta(tupleDelimiter) + `(.+?)\)`)
)

// ParseGraphDocument parses tuple protocol output into a graph document.
// Lines that match neither pattern are dropped. Relationship endpoints
// without an entity record get a placeholder node so every edge can be
// written.
func ParseGraphDocument(chunkID string, result string) *model.GraphDocument {
	document := &model.GraphDocument{ChunkID: chunkID}
	seen := map[string]*model.Node{}

	for _, match := range entityPattern.FindAllStringSubmatch(result, -1) {
		id, nodeType, description := match[1], match[2], match[3]
		if _, ok := seen[id]; ok {
			continue
		}
		node := &model.Node{ID: id, Type: nodeType, Description: description}
		seen[id] = node
		document.Nodes = append(document.Nodes, node)
	}

	for _, match := range relationshipPattern.FindAllStringSubmatch(result, -1) {
		source, target, relType, description := match[1], match[2], match[3], match[4]
		weight, err := strconv.ParseFloat(match[5], 64)
		if err != nil {
			continue
		}
		for _, id := range []string{source, target} {
			if _, ok := seen[id]; !ok {
				node := &model.Node{ID: id, Type: model.UnknownLabel, Description: ""}
				seen[id] = node
				document.Nodes = append(document.Nodes, node)
			}
		}
		document.Relationships = append(document.Relationships, &model.Relationship{
			Source:      source,
			Target:      target,
			Type:        relType,
			Description: description,
			Weight:      weight,
		})
	}

	return document
}

// Extractor prompts the LLM once per chunk and parses the tuple protocol
// output into graph documents.
type Extractor struct {
	chat           ChatFunc
	maxConcurrency int
	log            *slog.Logger
}

// NewExtractor creates a new extractor with a bounded worker pool.
func NewExtractor(chat ChatFunc, maxConcurrency int, logger *slog.Logger) (*Extractor, error) {
	if chat == nil {
		return nil, helper.NewError("extractor validation", fmt.Errorf("chat function is nil"))
	}

	return &Extractor{chat: chat, maxConcurrency: maxConcurrency, log: logger}, nil
}

// Extract runs the extraction prompt for every chunk concurrently. LLM
// failures are logged and yield an empty extraction for that chunk,
// never an error. Chunks without any extracted entity or relationship
// are dropped from the result.
func (e *Extractor) Extract(ctx context.Context, chunks []*model.Chunk) []*model.GraphDocument {
	systemPrompt := ExtractionSystemPrompt()

	inputs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		inputs = append(inputs, chunk.Text)
	}

	results := llm.Batch(ctx, inputs, e.maxConcurrency, func(ctx context.Context, input string) (string, error) {
		return e.chat(ctx, systemPrompt, ExtractionUserPrompt(input))
	})

	documents := []*model.GraphDocument{}
	for _, result := range results {
		chunk := chunks[result.Index]
		if result.Err != nil {
			e.log.Warn("Extraction failed, skipping chunk",
				slog.String("chunkId", chunk.ID),
				slog.String("error", result.Err.Error()))
			continue
		}

		document := ParseGraphDocument(chunk.ID, result.Output)
		if document.Empty() {
			e.log.Info("Empty extraction", slog.String("chunkId", chunk.ID))
			continue
		}
		documents = append(documents, document)
	}

	e.log.Info("Extracted graph documents",
		slog.Int("chunks", len(chunks)),
		slog.Int("documents", len(documents)))

	return documents
}
