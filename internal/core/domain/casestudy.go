package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Identity resolution policy. Each list is an ordered set of property names
// that name the same concept; lookups match any of them.
var (
	CaseStudyAliasFields = []string{"id", "case_id", "uuid", "slug"}
	ChunkAliasFields     = []string{"id", "chunk_id"}
	ChunkOrderFields     = []string{"order", "chunk_index", "index"}
)

// CaseStudy is the header view of a source document.
type CaseStudy struct {
	CaseID string `json:"case_id"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
}

// Chunk is a contiguous fragment of a case study text.
type Chunk struct {
	ChunkID   string    `json:"chunk_id"`
	Text      string    `json:"text"`
	Order     int       `json:"order"`
	CharStart int       `json:"char_start"`
	CharEnd   int       `json:"char_end"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// ChunkRecord is the unit of ingestion: one chunk plus the metadata of the
// case study that owns it.
type ChunkRecord struct {
	CaseID    string    `json:"case_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	ChunkID   string    `json:"chunk_id"`
	Text      string    `json:"text"`
	Order     int       `json:"order"`
	CharStart int       `json:"char_start"`
	CharEnd   int       `json:"char_end"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Validate checks the record shape. A dimension of zero skips the embedding
// length check.
func (r ChunkRecord) Validate(dimension int) error {
	var problems []string
	if strings.TrimSpace(r.CaseID) == "" {
		problems = append(problems, "case_id is required")
	}
	if strings.TrimSpace(r.ChunkID) == "" {
		problems = append(problems, "chunk_id is required")
	}
	if strings.TrimSpace(r.Text) == "" {
		problems = append(problems, "text is required")
	}
	if r.Order < 0 {
		problems = append(problems, "order must be >= 0")
	}
	if r.CharStart < 0 || r.CharStart >= r.CharEnd {
		problems = append(problems, fmt.Sprintf("char range [%d,%d) is empty or negative", r.CharStart, r.CharEnd))
	}
	if dimension > 0 && len(r.Embedding) > 0 && len(r.Embedding) != dimension {
		problems = append(problems, fmt.Sprintf("embedding dimension %d, expected %d", len(r.Embedding), dimension))
	}
	if len(problems) == 0 {
		return nil
	}
	return WrapError(ErrInvalidInput, "validate chunk record", errors.New(strings.Join(problems, "; ")))
}
