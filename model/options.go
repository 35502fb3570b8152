package model

// Options configures the graph build pipeline.
type Options struct {
	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Extraction, arbitration, summarisation and the global map
	// stage all fan out with this many in-flight LLM calls.
	MaxConcurrency int

	// Embeddings
	EmbeddingDim int

	// Deduplication
	SimilarityCutoff float64
	WordEditDistance int
	KNNTopK          int

	// Communities
	MaxCommunityIterations int
	MinCommunitySize       int

	// Summarisation
	SummaryTokenBudget int
}

// DefaultOptions returns the pipeline configuration used for the stroke corpus.
func DefaultOptions() Options {
	return Options{
		ChunkSize:              500,
		ChunkOverlap:           50,
		MaxConcurrency:         12,
		EmbeddingDim:           1024,
		SimilarityCutoff:       0.94,
		WordEditDistance:       3,
		KNNTopK:                10,
		MaxCommunityIterations: 10000,
		MinCommunitySize:       4,
		SummaryTokenBudget:     120000,
	}
}

// QueryOptions configures the local and global retrievers.
type QueryOptions struct {
	// Local retrieval limits
	TopEntities    int
	TopChunks      int
	TopCommunities int
	TopOutsideRels int
	TopInsideRels  int

	// Global retrieval
	Level          int
	ScoreThreshold int
	MaxConcurrency int

	// Answer style passed to the answer prompts
	ResponseType string
}

// DefaultQueryOptions returns a sensible default configuration.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		TopEntities:    10,
		TopChunks:      3,
		TopCommunities: 3,
		TopOutsideRels: 10,
		TopInsideRels:  10,
		Level:          0,
		ScoreThreshold: 60,
		MaxConcurrency: 12,
		ResponseType:   "多个段落",
	}
}
