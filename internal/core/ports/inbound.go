package ports

import (
	"context"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

// IndexManager is the inbound contract for schema provisioning.
type IndexManager interface {
	EnsureIndexes(ctx context.Context, dimension int) error
}

// ChunkIngestor is the inbound contract for chunk upserts.
type ChunkIngestor interface {
	UpsertChunk(ctx context.Context, rec domain.ChunkRecord) error
}

// Retriever is the inbound contract for hybrid retrieval.
type Retriever interface {
	RetrieveTopN(ctx context.Context, query string) ([]domain.Candidate, float64, error)
}

// QuestionAnswerer is the inbound contract for grounded or web fallback answers.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string) (*domain.Answer, error)
}

// CaseStudyResolver is the inbound contract for full document reconstruction.
type CaseStudyResolver interface {
	Resolve(ctx context.Context, caseID, chunkID string) (*domain.Document, error)
}

// ChunkEnqueuer is the inbound contract for asynchronous chunk ingestion.
type ChunkEnqueuer interface {
	Enqueue(ctx context.Context, rec domain.ChunkRecord) error
}
