package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/core/ports"
)

type IngestUseCase struct {
	writer    ports.ChunkWriter
	embedder  ports.Embedder
	dimension int
	logger    *slog.Logger
}

// NewIngestUseCase builds the upsert path. embedder may be nil when every
// record arrives with its vector.
func NewIngestUseCase(writer ports.ChunkWriter, embedder ports.Embedder, dimension int, logger *slog.Logger) *IngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		writer:    writer,
		embedder:  embedder,
		dimension: dimension,
		logger:    logger,
	}
}

// UpsertChunk validates the record, embeds its text when no vector is
// supplied, and writes it. Replaying the same record is a no-op.
func (uc *IngestUseCase) UpsertChunk(ctx context.Context, rec domain.ChunkRecord) error {
	rec.CaseID = strings.TrimSpace(rec.CaseID)
	rec.ChunkID = strings.TrimSpace(rec.ChunkID)
	if err := rec.Validate(uc.dimension); err != nil {
		return err
	}

	if len(rec.Embedding) == 0 && uc.embedder != nil {
		vectors, err := uc.embedder.Embed(ctx, []string{rec.Text})
		if err != nil {
			return domain.WrapError(domain.ErrEmbedding, "embed chunk", err)
		}
		if len(vectors) != 1 {
			return domain.WrapError(domain.ErrEmbedding, "embed chunk", fmt.Errorf("expected 1 vector, got %d", len(vectors)))
		}
		rec.Embedding = vectors[0]
		if err := rec.Validate(uc.dimension); err != nil {
			return domain.WrapError(domain.ErrEmbedding, "embed chunk", err)
		}
	}

	if err := uc.writer.UpsertChunk(ctx, rec); err != nil {
		if domain.IsKind(err, domain.ErrStoreUnavailable) {
			return err
		}
		return domain.WrapError(domain.ErrStoreUnavailable, "upsert chunk", err)
	}
	uc.logger.Debug("chunk_upserted", "case_id", rec.CaseID, "chunk_id", rec.ChunkID, "order", rec.Order)
	return nil
}

// UpsertChunks writes records in order and stops at the first failure,
// reporting its position.
func (uc *IngestUseCase) UpsertChunks(ctx context.Context, records []domain.ChunkRecord) (int, error) {
	for i, rec := range records {
		if err := uc.UpsertChunk(ctx, rec); err != nil {
			return i, fmt.Errorf("record %d (chunk %q): %w", i, rec.ChunkID, err)
		}
	}
	return len(records), nil
}

// ChunkPublisher queues records for the ingestion worker.
type ChunkPublisher struct {
	queue     ports.ChunkQueue
	dimension int
}

func NewChunkPublisher(queue ports.ChunkQueue, dimension int) *ChunkPublisher {
	return &ChunkPublisher{queue: queue, dimension: dimension}
}

// Enqueue validates before publishing so malformed records never reach the
// worker.
func (p *ChunkPublisher) Enqueue(ctx context.Context, rec domain.ChunkRecord) error {
	if err := rec.Validate(p.dimension); err != nil {
		return err
	}
	if err := p.queue.PublishChunk(ctx, rec); err != nil {
		return fmt.Errorf("publish chunk: %w", err)
	}
	return nil
}
