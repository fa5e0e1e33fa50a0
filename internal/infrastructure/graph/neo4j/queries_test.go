package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestIndexStatementsCoverSearchAndIdentityIndexes(t *testing.T) {
	stmts := indexStatements(1536)
	if len(stmts) != 2+len(domain.CaseStudyAliasFields)+len(domain.ChunkAliasFields) {
		t.Fatalf("unexpected statement count %d", len(stmts))
	}
	if !strings.Contains(stmts[0], "FULLTEXT INDEX chunk_text_fts IF NOT EXISTS") {
		t.Fatalf("first statement must create the full-text index: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], "`vector.dimensions`: 1536") || !strings.Contains(stmts[1], "'cosine'") {
		t.Fatalf("vector index must carry dimension and cosine similarity: %s", stmts[1])
	}
	for _, stmt := range stmts {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Fatalf("statement is not idempotent: %s", stmt)
		}
	}
	if !strings.Contains(strings.Join(stmts, "\n"), "cs_slug_idx IF NOT EXISTS FOR (c:CaseStudy) ON (c.slug)") {
		t.Fatalf("missing slug index")
	}
}

func TestCaseStudyByIDQueryMatchesEveryAlias(t *testing.T) {
	q := caseStudyByIDQuery()
	for _, field := range domain.CaseStudyAliasFields {
		if !strings.Contains(q, "c."+field+" = $cid") {
			t.Fatalf("query does not match alias %q:\n%s", field, q)
		}
	}
	if !strings.Contains(q, "coalesce(sib.order, sib.chunk_index, sib.index, 0)") {
		t.Fatalf("query does not coalesce chunk order:\n%s", q)
	}
}

func TestCaseStudyByChunkQueryMatchesChunkAliases(t *testing.T) {
	q := caseStudyByChunkQuery()
	if !strings.Contains(q, "ch.id = $chid OR ch.chunk_id = $chid") {
		t.Fatalf("unexpected chunk predicate:\n%s", q)
	}
	if !strings.Contains(q, "[:HAS_CHUNK]->(sib:Chunk)") {
		t.Fatalf("query must collect sibling chunks:\n%s", q)
	}
}

func TestEscapeLucene(t *testing.T) {
	cases := map[string]string{
		"churn reduction":   "churn reduction",
		"C++ (migration)":   `C\+\+ \(migration\)`,
		`title:"retail" OR`: `title\:\"retail\" or`,
		"a/b?":              `a\/b\?`,
		"pricing AND":       "pricing and",
		"what changed OR":   "what changed or",
		"NOT":               "not",
		"NOTE ANDROID":      "NOTE ANDROID",
		"churn NOT retail":  "churn not retail",
	}
	for in, want := range cases {
		if got := EscapeLucene(in); got != want {
			t.Fatalf("EscapeLucene(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnapshotFromRecord(t *testing.T) {
	record := &neo4j.Record{
		Keys: []string{"props", "fragments"},
		Values: []any{
			map[string]any{"slug": "acme", "title": "Acme"},
			[]any{
				map[string]any{"i": int64(2), "id": "c", "t": "c"},
				map[string]any{"i": int64(0), "id": "a", "t": "a"},
				"garbage",
			},
		},
	}

	snap := snapshotFromRecord(record)
	if snap.Properties["slug"] != "acme" {
		t.Fatalf("unexpected properties %v", snap.Properties)
	}
	if len(snap.Fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(snap.Fragments))
	}
	if snap.Fragments[0].Order != 2 || snap.Fragments[1].ChunkID != "a" {
		t.Fatalf("unexpected fragments %+v", snap.Fragments)
	}
}

func TestScoredChunkFromRecord(t *testing.T) {
	record := &neo4j.Record{
		Keys:   []string{"chunk_id", "text", "ord", "char_start", "char_end", "score"},
		Values: []any{"cs-1#3", "text", int64(3), int64(10), int64(20), 1.75},
	}
	hit := scoredChunkFromRecord(record)
	if hit.ChunkID != "cs-1#3" || hit.Order != 3 || hit.CharEnd != 20 || hit.Score != 1.75 {
		t.Fatalf("unexpected hit %+v", hit)
	}
}

func TestStoreErrorClassification(t *testing.T) {
	err := storeError("vector search", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) || domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("deadline must stay a context error, got %v", err)
	}

	err = storeError("vector search", errors.New("connection reset"))
	if !domain.IsKind(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	err = provisioningError(indexStatements(8)[1], errors.New("syntax"))
	if !domain.IsKind(err, domain.ErrIndexProvisioning) {
		t.Fatalf("expected ErrIndexProvisioning, got %v", err)
	}
	if !strings.Contains(err.Error(), "chunk_vec_idx") {
		t.Fatalf("error should name the index, got %v", err)
	}
}
