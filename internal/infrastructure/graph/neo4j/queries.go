package neo4j

import (
	"fmt"
	"strings"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

const (
	FullTextIndexName = "chunk_text_fts"
	VectorIndexName   = "chunk_vec_idx"
)

// indexStatements lists every schema statement in execution order. The two
// search indexes come first; the identity range indexes follow.
func indexStatements(dimension int) []string {
	stmts := []string{
		fmt.Sprintf("CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (c:Chunk) ON EACH [c.text]", FullTextIndexName),
		fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (c:Chunk) ON (c.embedding) "+
			"OPTIONS { indexConfig: { `vector.dimensions`: %d, `vector.similarity_function`: 'cosine' } }",
			VectorIndexName, dimension),
	}
	for _, field := range domain.CaseStudyAliasFields {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX cs_%s_idx IF NOT EXISTS FOR (c:CaseStudy) ON (c.%s)", field, field))
	}
	for _, field := range domain.ChunkAliasFields {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX chunk_%s_idx IF NOT EXISTS FOR (c:Chunk) ON (c.%s)", field, field))
	}
	return stmts
}

const upsertChunkQuery = `
MERGE (cs:CaseStudy {case_id: $case_id})
  ON CREATE SET cs.title = $title, cs.url = $url
MERGE (ch:Chunk {chunk_id: $chunk_id})
SET ch.text = $text,
    ch.order = $order,
    ch.char_start = $char_start,
    ch.char_end = $char_end,
    ch.embedding = $embedding
MERGE (cs)-[:HAS_CHUNK]->(ch)
`

// upsertChunkWithoutEmbeddingQuery keeps a previously stored vector when the
// record carries none.
const upsertChunkWithoutEmbeddingQuery = `
MERGE (cs:CaseStudy {case_id: $case_id})
  ON CREATE SET cs.title = $title, cs.url = $url
MERGE (ch:Chunk {chunk_id: $chunk_id})
SET ch.text = $text,
    ch.order = $order,
    ch.char_start = $char_start,
    ch.char_end = $char_end
MERGE (cs)-[:HAS_CHUNK]->(ch)
`

func lexicalSearchQuery() string {
	return fmt.Sprintf(`
CALL db.index.fulltext.queryNodes('%s', $q) YIELD node, score
RETURN %s
ORDER BY score DESC
LIMIT $k
`, FullTextIndexName, chunkProjection("node"))
}

func vectorSearchQuery() string {
	return fmt.Sprintf(`
CALL db.index.vector.queryNodes('%s', $k, $qvec) YIELD node, score
RETURN %s
ORDER BY score DESC
`, VectorIndexName, chunkProjection("node"))
}

func parentsByChunkIDsQuery() string {
	return fmt.Sprintf(`
UNWIND $ids AS cid
MATCH (cs:CaseStudy)-[:HAS_CHUNK]->(ch:Chunk)
WHERE %s
RETURN cid AS chunk_id, %s AS case_id, cs.title AS title, cs.url AS url
`, aliasPredicate("ch", domain.ChunkAliasFields, "cid"), coalesceExpr("cs", domain.CaseStudyAliasFields, "''"))
}

func caseStudyByIDQuery() string {
	return fmt.Sprintf(`
MATCH (c:CaseStudy)
WHERE %s
WITH c LIMIT 1
%s`, aliasPredicate("c", domain.CaseStudyAliasFields, "$cid"), snapshotTail("c"))
}

func caseStudyByChunkQuery() string {
	return fmt.Sprintf(`
MATCH (ch:Chunk)
WHERE %s
MATCH (c:CaseStudy)-[:HAS_CHUNK]->(ch)
WITH c LIMIT 1
%s`, aliasPredicate("ch", domain.ChunkAliasFields, "$chid"), snapshotTail("c"))
}

func snapshotTail(caseVar string) string {
	return fmt.Sprintf(`OPTIONAL MATCH (%[1]s)-[:HAS_CHUNK]->(sib:Chunk)
RETURN properties(%[1]s) AS props,
       collect(CASE WHEN sib IS NULL THEN NULL ELSE {i: %[2]s, id: %[3]s, t: sib.text} END) AS fragments
`, caseVar, coalesceExpr("sib", domain.ChunkOrderFields, "0"), coalesceExpr("sib", []string{"chunk_id", "id"}, "''"))
}

func chunkProjection(nodeVar string) string {
	return fmt.Sprintf("%s AS chunk_id, %s.text AS text, %s AS ord, %s.char_start AS char_start, %s.char_end AS char_end, score",
		coalesceExpr(nodeVar, []string{"chunk_id", "id"}, "''"),
		nodeVar,
		coalesceExpr(nodeVar, domain.ChunkOrderFields, "0"),
		nodeVar, nodeVar)
}

// aliasPredicate renders "v.a = p OR v.b = p ..." for the alias fields.
func aliasPredicate(variable string, fields []string, param string) string {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s.%s = %s", variable, field, param))
	}
	return strings.Join(parts, " OR ")
}

func coalesceExpr(variable string, fields []string, fallback string) string {
	parts := make([]string, 0, len(fields)+1)
	for _, field := range fields {
		parts = append(parts, variable+"."+field)
	}
	if fallback != "" {
		parts = append(parts, fallback)
	}
	return "coalesce(" + strings.Join(parts, ", ") + ")"
}

// luceneSpecial holds the characters the full-text query parser treats as
// syntax.
const luceneSpecial = `+-&|!(){}[]^"~*?:\/`

// EscapeLucene makes free text safe for db.index.fulltext.queryNodes.
// Special characters are escaped and the bare AND/OR/NOT operators are
// lowercased so the parser reads them as terms.
func EscapeLucene(query string) string {
	fields := strings.Fields(query)
	for i, field := range fields {
		switch field {
		case "AND", "OR", "NOT":
			fields[i] = strings.ToLower(field)
			continue
		}
		var b strings.Builder
		b.Grow(len(field))
		for _, r := range field {
			if strings.ContainsRune(luceneSpecial, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		fields[i] = b.String()
	}
	return strings.Join(fields, " ")
}
