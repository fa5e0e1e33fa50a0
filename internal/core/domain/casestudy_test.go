package domain

import (
	"strings"
	"testing"
)

func validRecord() ChunkRecord {
	return ChunkRecord{
		CaseID:    "cs-1",
		Title:     "Acme",
		URL:       "https://example.com/acme",
		ChunkID:   "cs-1#0",
		Text:      "hello",
		Order:     0,
		CharStart: 0,
		CharEnd:   5,
		Embedding: []float32{0.1, 0.2, 0.3},
	}
}

func TestChunkRecordValidateAcceptsWellFormedRecord(t *testing.T) {
	if err := validRecord().Validate(3); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestChunkRecordValidateRejectsBadShape(t *testing.T) {
	rec := validRecord()
	rec.ChunkID = " "
	rec.CharStart = 5
	rec.Embedding = []float32{0.1}

	err := rec.Validate(3)
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	for _, want := range []string{"chunk_id", "char range", "embedding dimension"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in error, got %v", want, err)
		}
	}
}

func TestNewEvidenceRoundsScoreAndTruncatesSnippet(t *testing.T) {
	c := Candidate{
		Chunk:     Chunk{ChunkID: "c1", Text: strings.Repeat("x", 300), CharStart: 10, CharEnd: 310},
		CaseStudy: CaseStudy{CaseID: "cs-1", Title: "Acme"},
		Score:     0.123456,
	}
	ev := NewEvidence(c)
	if ev.Score != 0.123 {
		t.Fatalf("expected rounded score 0.123, got %v", ev.Score)
	}
	if got := len([]rune(ev.Snippet)); got != 221 {
		t.Fatalf("expected 220 runes plus ellipsis, got %d", got)
	}
	if ev.Text != c.Text {
		t.Fatalf("evidence must keep full fragment text")
	}
}
