// Package graphmed builds a knowledge graph from a Chinese medical text
// corpus and answers questions over it. Ingestion tokenizes and chunks
// the corpus, extracts entities and relationships with an LLM and writes
// them to Neo4j. Processing embeds, deduplicates, clusters and
// summarizes the entities. Retrieval answers locally from the entity
// neighborhood or globally over the community summaries.
package graphmed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/graphmed/graphmed/core/pipeline"
	"github.com/graphmed/graphmed/core/retrieval"
	"github.com/graphmed/graphmed/database"
	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/llm"
	"github.com/graphmed/graphmed/model"
	"github.com/graphmed/graphmed/picture"
)

// GraphMed wires the graph database, the LLM client and the pipeline
// stages into one entry point.
type GraphMed struct {
	options      model.Options
	queryOptions model.QueryOptions

	graph       *database.Graph
	documents   *database.DocumentsDBHandler
	entities    *database.EntitiesDBHandler
	communities *database.CommunitiesDBHandler

	chunk         pipeline.ChunkFunc
	extractor     *pipeline.Extractor
	embedder      *pipeline.EntityEmbedder
	deduplicator  *pipeline.Deduplicator
	builder       *pipeline.CommunityBuilder
	summarizer    *pipeline.Summarizer
	local         *retrieval.LocalRetriever
	global        *retrieval.GlobalRetriever
	source        *database.SourceDBHandler
	updater       *picture.Updater
	closeEmbedder func() error

	log *slog.Logger
}

// communityStore joins the entity edge reads and the community writes
// the community builder needs.
type communityStore struct {
	*database.EntitiesDBHandler
	*database.CommunitiesDBHandler
}

// New connects to the graph database and the LLM provider, prepares the
// configured embedding provider and wires all pipeline stages.
func New(ctx context.Context, config *helper.Configuration, options model.Options, queryOptions model.QueryOptions, logger *slog.Logger) (*GraphMed, error) {
	if config == nil {
		return nil, helper.NewError("graphmed validation", fmt.Errorf("configuration is nil"))
	}

	graph, err := database.NewGraph(ctx, config.Neo4jURI, config.Neo4jUsername, config.Neo4jPassword, logger)
	if err != nil {
		return nil, err
	}

	if err := graph.EnsureSchema(ctx, options.EmbeddingDim); err != nil {
		graph.Close(ctx)
		return nil, err
	}

	g := &GraphMed{options: options, queryOptions: queryOptions, graph: graph, log: logger}

	err = g.wire(config, logger)
	if err != nil {
		graph.Close(ctx)
		return nil, err
	}

	return g, nil
}

func (g *GraphMed) wire(config *helper.Configuration, logger *slog.Logger) error {
	var err error
	if g.documents, err = database.NewDocumentsDBHandler(g.graph, logger); err != nil {
		return err
	}
	if g.entities, err = database.NewEntitiesDBHandler(g.graph, logger); err != nil {
		return err
	}
	if g.communities, err = database.NewCommunitiesDBHandler(g.graph, logger); err != nil {
		return err
	}
	retrievalDB, err := database.NewRetrievalDBHandler(g.graph, logger)
	if err != nil {
		return err
	}
	if g.source, err = database.NewSourceDBHandler(g.graph, logger); err != nil {
		return err
	}
	pictures, err := database.NewPicturesDBHandler(g.graph, logger)
	if err != nil {
		return err
	}

	tokenize, err := pipeline.DefaultTokenizer()
	if err != nil {
		return err
	}
	g.chunk = pipeline.SentenceChunker(tokenize, g.options.ChunkSize, g.options.ChunkOverlap)

	client := llm.NewClient(config.DeepSeekAPIKey, config.DeepSeekBaseURL, config.EmbeddingModel, logger)

	var embed pipeline.EmbedFunc
	if config.EmbeddingProvider == helper.EmbeddingProviderAPI {
		embed = client.Embed
	} else {
		var closeEmbedder func() error
		embed, closeEmbedder, err = pipeline.LocalEmbedder(config.EmbeddingModel)
		if err != nil {
			return err
		}
		g.closeEmbedder = closeEmbedder
	}

	if g.extractor, err = pipeline.NewExtractor(client.Chat, g.options.MaxConcurrency, logger); err != nil {
		return err
	}
	if g.embedder, err = pipeline.NewEntityEmbedder(embed, g.entities, logger); err != nil {
		return err
	}
	if g.deduplicator, err = pipeline.NewDeduplicator(g.entities, client.ChatJSON, g.options, logger); err != nil {
		return err
	}
	if g.builder, err = pipeline.NewCommunityBuilder(communityStore{g.entities, g.communities}, g.options.MaxCommunityIterations, logger); err != nil {
		return err
	}
	if g.summarizer, err = pipeline.NewSummarizer(g.communities, client.Chat, g.options, logger); err != nil {
		return err
	}
	if g.local, err = retrieval.NewLocalRetriever(retrievalDB, embed, client.Chat, g.queryOptions, logger); err != nil {
		return err
	}
	if g.global, err = retrieval.NewGlobalRetriever(g.communities, client.ChatJSON, client.Chat, g.queryOptions, logger); err != nil {
		return err
	}
	if g.updater, err = picture.NewUpdater(pictures, logger); err != nil {
		return err
	}

	return nil
}

// IngestDirectory ingests every .txt file in the directory. Files are
// processed one after another, a failing file aborts the run.
func (g *GraphMed) IngestDirectory(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return helper.NewError("read corpus directory", err)
	}

	files := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return helper.NewError("read corpus file", err)
		}

		err = g.IngestText(ctx, entry.Name(), string(content), path)
		if err != nil {
			return err
		}
		files++
	}

	if files == 0 {
		return helper.NewError("read corpus directory", fmt.Errorf("no .txt files in %v", dir))
	}

	g.log.Info("Ingested corpus", slog.String("dir", dir), slog.Int("files", files))

	return nil
}

// IngestText chunks one document, extracts its graph and writes both to
// the database. Re-ingesting the same text is idempotent because chunks
// are keyed by content hash and entities merge by id.
func (g *GraphMed) IngestText(ctx context.Context, fileName string, text string, uri string) error {
	document := &model.Document{FileName: fileName, Type: "text", URI: uri}
	err := g.documents.MergeDocument(ctx, document)
	if err != nil {
		return err
	}

	tokenChunks, err := g.chunk(text)
	if err != nil {
		return helper.NewError("chunk document", err)
	}
	chunks := model.NewChunks(fileName, tokenChunks)

	err = g.documents.ConnectChunks(ctx, fileName, chunks)
	if err != nil {
		return err
	}

	documents := g.extractor.Extract(ctx, chunks)

	err = g.entities.ImportGraphDocuments(ctx, documents)
	if err != nil {
		return err
	}

	g.log.Info("Ingested document",
		slog.String("fileName", fileName),
		slog.Int("chunks", len(chunks)),
		slog.Int("graphDocuments", len(documents)))

	return nil
}

// Process runs the post-ingestion stages: embed new entities, merge
// near-duplicates, rebuild communities and summarize them.
func (g *GraphMed) Process(ctx context.Context) error {
	if _, err := g.embedder.EmbedNew(ctx); err != nil {
		return err
	}

	merged, err := g.deduplicator.Run(ctx)
	if err != nil {
		return err
	}
	if len(merged) > 0 {
		if _, err := g.embedder.ReembedCombined(ctx); err != nil {
			return err
		}
		if err := g.entities.RemoveCombinedLabels(ctx); err != nil {
			return err
		}
	}

	if _, err := g.builder.Run(ctx); err != nil {
		return err
	}

	if _, err := g.summarizer.Run(ctx); err != nil {
		return err
	}

	return nil
}

// LocalSearch answers from the graph neighborhood of the entities
// closest to the question.
func (g *GraphMed) LocalSearch(ctx context.Context, question string) (string, error) {
	return g.local.Search(ctx, question)
}

// GlobalSearch answers by map/reduce over the community summaries.
func (g *GraphMed) GlobalSearch(ctx context.Context, question string) (string, error) {
	return g.global.Search(ctx, question)
}

// TraceSource resolves a citation id from an answer back to the chunk
// text or community summary it came from.
func (g *GraphMed) TraceSource(ctx context.Context, id string) (*database.SourceRecord, error) {
	return g.source.Lookup(ctx, id)
}

// PictureLabels lists the entity type labels available for image
// attachment.
func (g *GraphMed) PictureLabels(ctx context.Context) ([]string, error) {
	return g.updater.Labels(ctx)
}

// AttachPictures looks up every entity of the label on Wikipedia and
// stores the found thumbnail urls.
func (g *GraphMed) AttachPictures(ctx context.Context, label string) (picture.Stats, error) {
	return g.updater.ProcessLabel(ctx, label)
}

// Reset wipes the graph and recreates the schema.
func (g *GraphMed) Reset(ctx context.Context) error {
	if err := g.graph.Wipe(ctx); err != nil {
		return err
	}
	return g.graph.EnsureSchema(ctx, g.options.EmbeddingDim)
}

// Close releases the embedding session and the database driver.
func (g *GraphMed) Close(ctx context.Context) error {
	if g.closeEmbedder != nil {
		if err := g.closeEmbedder(); err != nil {
			g.log.Warn("Closing embedder failed", slog.String("error", err.Error()))
		}
	}
	return g.graph.Close(ctx)
}
