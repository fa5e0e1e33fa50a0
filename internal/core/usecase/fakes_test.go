package usecase

import (
	"context"
	"sync"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

type embedderFake struct {
	mu     sync.Mutex
	calls  int
	vector []float32
	err    error
}

func (f *embedderFake) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := f.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.vector == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return f.vector, nil
}

// searcherFake serves fixed hits per source. A blocking source waits for its
// context to end.
type searcherFake struct {
	lexical       []domain.ScoredChunk
	vector        []domain.ScoredChunk
	lexicalErr    error
	vectorErr     error
	blockLexical  bool
	blockVector   bool
	blockParents  bool
	parents       map[string]domain.CaseStudy
	parentsErr    error
	parentLookups int
	lookedUp      []string
}

func (f *searcherFake) SearchLexical(ctx context.Context, _ string, limit int) ([]domain.ScoredChunk, error) {
	if f.blockLexical {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	return limitHits(f.lexical, limit), nil
}

func (f *searcherFake) SearchVector(ctx context.Context, _ []float32, limit int) ([]domain.ScoredChunk, error) {
	if f.blockVector {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return limitHits(f.vector, limit), nil
}

func (f *searcherFake) CaseStudiesByChunkIDs(ctx context.Context, ids []string) (map[string]domain.CaseStudy, error) {
	f.parentLookups++
	f.lookedUp = append([]string(nil), ids...)
	if f.blockParents {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.parentsErr != nil {
		return nil, f.parentsErr
	}
	out := make(map[string]domain.CaseStudy, len(ids))
	for _, id := range ids {
		if parent, ok := f.parents[id]; ok {
			out[id] = parent
		}
	}
	return out, nil
}

func limitHits(hits []domain.ScoredChunk, limit int) []domain.ScoredChunk {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

func hit(id string, order int, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{ChunkID: id, Text: "text of " + id, Order: order, CharStart: order * 10, CharEnd: order*10 + 9},
		Score: score,
	}
}

type retrieverFake struct {
	candidates []domain.Candidate
	best       float64
	err        error
}

func (f *retrieverFake) RetrieveTopN(context.Context, string) ([]domain.Candidate, float64, error) {
	return f.candidates, f.best, f.err
}

type generatorFake struct {
	system string
	user   string
	text   string
	err    error
	calls  int
}

func (f *generatorFake) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type webFake struct {
	result domain.WebResult
	err    error
	calls  int
}

func (f *webFake) SearchAnswer(context.Context, string) (domain.WebResult, error) {
	f.calls++
	return f.result, f.err
}

type readerFake struct {
	byCase      map[string]*domain.CaseStudySnapshot
	byChunk     map[string]*domain.CaseStudySnapshot
	err         error
	caseLookups int
}

func (f *readerFake) FindCaseStudy(_ context.Context, caseID string) (*domain.CaseStudySnapshot, error) {
	f.caseLookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.byCase[caseID], nil
}

func (f *readerFake) FindCaseStudyByChunk(_ context.Context, chunkID string) (*domain.CaseStudySnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byChunk[chunkID], nil
}

type writerFake struct {
	written []domain.ChunkRecord
	failAt  int
	err     error
}

func (f *writerFake) UpsertChunk(_ context.Context, rec domain.ChunkRecord) error {
	if f.err != nil && len(f.written) == f.failAt {
		return f.err
	}
	f.written = append(f.written, rec)
	return nil
}

type provisionerFake struct {
	dims []int
	err  error
}

func (f *provisionerFake) EnsureIndexes(_ context.Context, dimension int) error {
	f.dims = append(f.dims, dimension)
	return f.err
}

type queueFake struct {
	published []domain.ChunkRecord
	err       error
}

func (f *queueFake) PublishChunk(_ context.Context, rec domain.ChunkRecord) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, rec)
	return nil
}

func (f *queueFake) SubscribeChunks(context.Context, func(context.Context, domain.ChunkRecord) error) error {
	return nil
}
