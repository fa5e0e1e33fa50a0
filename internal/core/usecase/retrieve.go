package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

type RetrieveConfig struct {
	TopK          int
	Weights       domain.FusionWeights
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
}

type RetrieveUseCase struct {
	embedder ports.Embedder
	searcher ports.ChunkSearcher
	cfg      RetrieveConfig
	logger   *slog.Logger
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	searcher ports.ChunkSearcher,
	cfg RetrieveConfig,
	logger *slog.Logger,
) *RetrieveUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	if cfg.Weights == (domain.FusionWeights{}) {
		cfg.Weights = domain.DefaultFusionWeights()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrieveUseCase{
		embedder: embedder,
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
	}
}

// RetrieveTopN runs the lexical and vector searches concurrently, fuses the
// two rankings and attaches each surviving chunk's case study. It returns the
// candidates in rank order and the best fused score (0 when empty).
func (uc *RetrieveUseCase) RetrieveTopN(ctx context.Context, query string) ([]domain.Candidate, float64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, nil
	}
	start := time.Now()

	var (
		lexical, vector         []domain.ScoredChunk
		lexicalLate, vectorLate bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, late, err := uc.runSource(ctx, gctx, "lexical", func(sctx context.Context) ([]domain.ScoredChunk, error) {
			return uc.searcher.SearchLexical(sctx, query, uc.cfg.TopK)
		})
		lexical, lexicalLate = hits, late
		return err
	})
	g.Go(func() error {
		qvec, err := uc.embedQuery(gctx, query)
		if err != nil {
			return err
		}
		hits, late, err := uc.runSource(ctx, gctx, "vector", func(sctx context.Context) ([]domain.ScoredChunk, error) {
			return uc.searcher.SearchVector(sctx, qvec, uc.cfg.TopK)
		})
		vector, vectorLate = hits, late
		return err
	})
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, fmt.Errorf("hybrid retrieval: %w", ctxErr)
		}
		if domain.IsKind(err, domain.ErrEmbedding) || domain.IsKind(err, domain.ErrStoreUnavailable) {
			return nil, 0, err
		}
		return nil, 0, domain.WrapError(domain.ErrStoreUnavailable, "hybrid retrieval", err)
	}
	if lexicalLate && vectorLate {
		return nil, 0, domain.WrapError(domain.ErrStoreUnavailable, "hybrid retrieval", errors.New("both retrieval sources timed out"))
	}

	candidates := trimCandidates(fuseWeighted(lexical, vector, uc.cfg.Weights), uc.cfg.TopK)
	candidates, err := uc.attachCaseStudies(ctx, candidates)
	if err != nil {
		return nil, 0, err
	}

	best := 0.0
	if len(candidates) > 0 {
		best = candidates[0].Score
	}
	uc.logger.Info("hybrid_retrieval",
		"lexical_hits", len(lexical),
		"vector_hits", len(vector),
		"lexical_timed_out", lexicalLate,
		"vector_timed_out", vectorLate,
		"candidates", len(candidates),
		"best_score", best,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return candidates, best, nil
}

// runSource bounds one search with the source timeout. A timeout of this
// source alone yields no hits; any other failure is returned.
func (uc *RetrieveUseCase) runSource(
	parent, groupCtx context.Context,
	source string,
	search func(context.Context) ([]domain.ScoredChunk, error),
) ([]domain.ScoredChunk, bool, error) {
	sctx := groupCtx
	cancel := func() {}
	if uc.cfg.SearchTimeout > 0 {
		sctx, cancel = context.WithTimeout(groupCtx, uc.cfg.SearchTimeout)
	}
	defer cancel()

	hits, err := search(sctx)
	if err == nil {
		return hits, false, nil
	}
	if parent.Err() == nil && groupCtx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
		uc.logger.Warn("retrieval_source_timeout", "source", source, "timeout_ms", uc.cfg.SearchTimeout.Milliseconds())
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("%s search: %w", source, err)
}

func (uc *RetrieveUseCase) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ectx := ctx
	if uc.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, uc.cfg.EmbedTimeout)
		defer cancel()
	}
	qvec, err := uc.embedder.EmbedQuery(ectx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}
	if len(qvec) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", errors.New("empty query vector"))
	}
	return qvec, nil
}

// attachCaseStudies resolves parents in one lookup bounded by the search
// timeout. Expiry of that bound is a store outage, not a caller cancellation.
func (uc *RetrieveUseCase) attachCaseStudies(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ChunkID
	}
	lctx := ctx
	if uc.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, uc.cfg.SearchTimeout)
		defer cancel()
	}
	parents, err := uc.searcher.CaseStudiesByChunkIDs(lctx, ids)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("lookup case studies: %w", ctxErr)
		}
		if domain.IsKind(err, domain.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "lookup case studies", err)
	}

	out := candidates[:0]
	for _, c := range candidates {
		parent, ok := parents[c.ChunkID]
		if !ok {
			uc.logger.Warn("orphan_chunk_dropped", "chunk_id", c.ChunkID)
			continue
		}
		c.CaseStudy = parent
		out = append(out, c)
	}
	return out, nil
}
