package usecase

import (
	"sort"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

type fusedCandidate struct {
	chunk   domain.Chunk
	lexical float64
	vector  float64
}

// fuseWeighted min-max normalises each source into [0,1] and combines them
// with the given weights. A chunk missing from a source scores 0 there.
func fuseWeighted(lexical, vector []domain.ScoredChunk, weights domain.FusionWeights) []domain.Candidate {
	acc := make(map[string]*fusedCandidate, len(lexical)+len(vector))
	add := func(hits []domain.ScoredChunk, set func(*fusedCandidate, float64)) {
		norm := normalizeMinMax(hits)
		for i, hit := range hits {
			c, ok := acc[hit.ChunkID]
			if !ok {
				c = &fusedCandidate{chunk: hit.Chunk}
				acc[hit.ChunkID] = c
			} else {
				c.chunk = preferRicherChunk(c.chunk, hit.Chunk)
			}
			set(c, norm[i])
		}
	}
	add(lexical, func(c *fusedCandidate, v float64) {
		if v > c.lexical {
			c.lexical = v
		}
	})
	add(vector, func(c *fusedCandidate, v float64) {
		if v > c.vector {
			c.vector = v
		}
	})

	out := make([]domain.Candidate, 0, len(acc))
	for _, c := range acc {
		out = append(out, domain.Candidate{
			Chunk:        c.chunk,
			Score:        weights.Lexical*c.lexical + weights.Vector*c.vector,
			LexicalScore: c.lexical,
			VectorScore:  c.vector,
		})
	}
	sortCandidates(out)
	return out
}

// sortCandidates orders by fused score, then chunk order, then chunk id, so
// equal inputs always produce the same ranking.
func sortCandidates(cands []domain.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		if cands[i].Order != cands[j].Order {
			return cands[i].Order < cands[j].Order
		}
		return cands[i].ChunkID < cands[j].ChunkID
	})
}

// normalizeMinMax maps scores into [0,1]. When every score is equal the
// source carries no ranking signal: positive scores map to 1, others to 0.
func normalizeMinMax(hits []domain.ScoredChunk) []float64 {
	out := make([]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, hit := range hits[1:] {
		if hit.Score < minScore {
			minScore = hit.Score
		}
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}
	spread := maxScore - minScore
	for i, hit := range hits {
		if spread <= 0 {
			if hit.Score > 0 {
				out[i] = 1
			}
			continue
		}
		out[i] = (hit.Score - minScore) / spread
	}
	return out
}

func trimCandidates(cands []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(cands) <= limit {
		return cands
	}
	return cands[:limit]
}

func preferRicherChunk(current, candidate domain.Chunk) domain.Chunk {
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.CharEnd == 0 && candidate.CharEnd > 0 {
		current.CharStart = candidate.CharStart
		current.CharEnd = candidate.CharEnd
	}
	if current.Order == 0 && candidate.Order > 0 {
		current.Order = candidate.Order
	}
	return current
}
