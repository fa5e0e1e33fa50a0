package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

func parentsFor(ids ...string) map[string]domain.CaseStudy {
	out := make(map[string]domain.CaseStudy, len(ids))
	for _, id := range ids {
		out[id] = domain.CaseStudy{CaseID: "cs-" + id, Title: "Case " + id}
	}
	return out
}

func TestRetrieveTopNBlankQuerySkipsEmbedding(t *testing.T) {
	embedder := &embedderFake{}
	uc := NewRetrieveUseCase(embedder, &searcherFake{}, RetrieveConfig{TopK: 8}, nil)

	got, best, err := uc.RetrieveTopN(context.Background(), "   ")
	if err != nil || got != nil || best != 0 {
		t.Fatalf("expected nil, 0, nil; got %v, %v, %v", got, best, err)
	}
	if embedder.calls != 0 {
		t.Fatalf("blank query must not call the embedder")
	}
}

func TestRetrieveTopNFusesAttachesParentsAndTruncates(t *testing.T) {
	searcher := &searcherFake{
		lexical: []domain.ScoredChunk{hit("a", 0, 5), hit("b", 1, 3), hit("c", 2, 1)},
		vector:  []domain.ScoredChunk{hit("b", 1, 0.95), hit("d", 3, 0.5), hit("a", 0, 0.4)},
		parents: parentsFor("a", "b", "c", "d"),
	}
	uc := NewRetrieveUseCase(&embedderFake{}, searcher, RetrieveConfig{TopK: 2}, nil)

	got, best, err := uc.RetrieveTopN(context.Background(), "churn")
	if err != nil {
		t.Fatalf("RetrieveTopN() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected TOP_K=2 candidates, got %d", len(got))
	}
	if got[0].ChunkID != "b" || got[0].CaseID != "cs-b" || got[0].Title != "Case b" {
		t.Fatalf("unexpected top candidate %+v", got[0])
	}
	if best != got[0].Score {
		t.Fatalf("best score %v must equal top candidate score %v", best, got[0].Score)
	}
	if searcher.parentLookups != 1 || len(searcher.lookedUp) != 2 {
		t.Fatalf("expected one batched lookup of the truncated ids, got %d lookups of %v", searcher.parentLookups, searcher.lookedUp)
	}
}

func TestRetrieveTopNDropsOrphanChunks(t *testing.T) {
	searcher := &searcherFake{
		lexical: []domain.ScoredChunk{hit("orphan", 0, 9), hit("a", 1, 1)},
		parents: parentsFor("a"),
	}
	uc := NewRetrieveUseCase(&embedderFake{}, searcher, RetrieveConfig{TopK: 8}, nil)

	got, best, err := uc.RetrieveTopN(context.Background(), "q")
	if err != nil {
		t.Fatalf("RetrieveTopN() error = %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "a" {
		t.Fatalf("orphan must be dropped, got %+v", got)
	}
	if best != got[0].Score {
		t.Fatalf("best score must come from surviving candidates")
	}
}

func TestRetrieveTopNEmptyCorpus(t *testing.T) {
	uc := NewRetrieveUseCase(&embedderFake{}, &searcherFake{}, RetrieveConfig{TopK: 8}, nil)
	got, best, err := uc.RetrieveTopN(context.Background(), "anything")
	if err != nil || len(got) != 0 || best != 0 {
		t.Fatalf("expected empty result, got %v, %v, %v", got, best, err)
	}
}

func TestRetrieveTopNEmbeddingFailure(t *testing.T) {
	uc := NewRetrieveUseCase(&embedderFake{err: errors.New("quota")}, &searcherFake{}, RetrieveConfig{TopK: 8}, nil)
	_, _, err := uc.RetrieveTopN(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestRetrieveTopNSingleSourceTimeoutDegrades(t *testing.T) {
	searcher := &searcherFake{
		lexical:     []domain.ScoredChunk{hit("a", 0, 2)},
		blockVector: true,
		parents:     parentsFor("a"),
	}
	uc := NewRetrieveUseCase(&embedderFake{}, searcher, RetrieveConfig{TopK: 8, SearchTimeout: 20 * time.Millisecond}, nil)

	got, _, err := uc.RetrieveTopN(context.Background(), "q")
	if err != nil {
		t.Fatalf("a single late source must not fail retrieval: %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "a" {
		t.Fatalf("expected lexical hit only, got %+v", got)
	}
}

func TestRetrieveTopNBothSourcesTimeout(t *testing.T) {
	searcher := &searcherFake{blockLexical: true, blockVector: true}
	uc := NewRetrieveUseCase(&embedderFake{}, searcher, RetrieveConfig{TopK: 8, SearchTimeout: 10 * time.Millisecond}, nil)

	_, _, err := uc.RetrieveTopN(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRetrieveTopNStoreFailureCancelsSibling(t *testing.T) {
	searcher := &searcherFake{
		lexicalErr:  errors.New("connection refused"),
		blockVector: true,
	}
	uc := NewRetrieveUseCase(&embedderFake{}, searcher, RetrieveConfig{TopK: 8, SearchTimeout: 5 * time.Second}, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := uc.RetrieveTopN(context.Background(), "q")
		done <- err
	}()
	select {
	case err := <-done:
		if !domain.IsKind(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sibling search was not cancelled")
	}
}

func TestRetrieveTopNCallerCancellation(t *testing.T) {
	searcher := &searcherFake{blockLexical: true, blockVector: true}
	uc := NewRetrieveUseCase(&embedderFake{}, searcher, RetrieveConfig{TopK: 8, SearchTimeout: 5 * time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, _, err := uc.RetrieveTopN(ctx, "q")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetrieveTopNParentLookupFailure(t *testing.T) {
	searcher := &searcherFake{
		lexical:    []domain.ScoredChunk{hit("a", 0, 1)},
		parentsErr: errors.New("session expired"),
	}
	uc := NewRetrieveUseCase(&embedderFake{}, searcher, RetrieveConfig{TopK: 8}, nil)
	_, _, err := uc.RetrieveTopN(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRetrieveTopNParentLookupBoundedBySearchTimeout(t *testing.T) {
	searcher := &searcherFake{
		lexical:      []domain.ScoredChunk{hit("a", 0, 1)},
		vector:       []domain.ScoredChunk{hit("a", 0, 0.9)},
		blockParents: true,
	}
	uc := NewRetrieveUseCase(&embedderFake{}, searcher, RetrieveConfig{TopK: 8, SearchTimeout: 20 * time.Millisecond}, nil)

	done := make(chan error, 1)
	go func() {
		_, _, err := uc.RetrieveTopN(context.Background(), "q")
		done <- err
	}()
	select {
	case err := <-done:
		if !domain.IsKind(err, domain.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
		if errors.Is(err, context.Canceled) {
			t.Fatalf("lookup timeout must not look like caller cancellation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("parent lookup was not bounded")
	}
}
