package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

const groundedSystemPrompt = `You are a helpful analyst. Answer the user's question using ONLY the provided sources.
If a fact is not in the sources, state that it is not present in the case study database.
Return a concise answer.`

// buildGroundedPrompt renders the user turn: the question followed by the
// numbered sources with their provenance.
func buildGroundedPrompt(question string, candidates []domain.Candidate) string {
	sources := make([]string, 0, len(candidates))
	for i, c := range candidates {
		sources = append(sources, fmt.Sprintf(
			"[%d] %s (chunk %s range %d-%d):\n%s",
			i+1,
			c.Title,
			c.ChunkID,
			c.CharStart,
			c.CharEnd,
			c.Text,
		))
	}
	return fmt.Sprintf("Question: %s\n\nSources:\n%s", question, strings.Join(sources, "\n\n"))
}
