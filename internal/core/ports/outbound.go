package ports

import (
	"context"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

// IndexProvisioner creates the lexical, vector and identity indexes.
type IndexProvisioner interface {
	EnsureIndexes(ctx context.Context, dimension int) error
}

// ChunkWriter is the single mutation path into the graph store.
type ChunkWriter interface {
	UpsertChunk(ctx context.Context, rec domain.ChunkRecord) error
}

// ChunkSearcher runs the two retrieval sources and the batched parent lookup.
type ChunkSearcher interface {
	SearchLexical(ctx context.Context, query string, limit int) ([]domain.ScoredChunk, error)
	SearchVector(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error)
	CaseStudiesByChunkIDs(ctx context.Context, chunkIDs []string) (map[string]domain.CaseStudy, error)
}

// CaseStudyReader loads a case study with its fragments. Both methods return
// nil, nil when nothing matches.
type CaseStudyReader interface {
	FindCaseStudy(ctx context.Context, caseID string) (*domain.CaseStudySnapshot, error)
	FindCaseStudyByChunk(ctx context.Context, chunkID string) (*domain.CaseStudySnapshot, error)
}

// Embedder builds vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator runs the grounded completion.
type AnswerGenerator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// WebSearcher answers a question with a web-search augmented completion.
type WebSearcher interface {
	SearchAnswer(ctx context.Context, question string) (domain.WebResult, error)
}

// ChunkQueue carries chunk records to the ingestion worker.
type ChunkQueue interface {
	PublishChunk(ctx context.Context, rec domain.ChunkRecord) error
	SubscribeChunks(ctx context.Context, handler func(context.Context, domain.ChunkRecord) error) error
}
