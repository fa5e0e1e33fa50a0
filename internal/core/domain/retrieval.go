package domain

// ScoredChunk is a single hit from one retrieval source, carrying the
// store-native score for that source.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Candidate is a fused retrieval result. It is never persisted.
type Candidate struct {
	Chunk
	CaseStudy
	Score        float64 `json:"score"`
	LexicalScore float64 `json:"lexical_score"`
	VectorScore  float64 `json:"vector_score"`
}

// FusionWeights controls the weighted sum of normalised source scores.
type FusionWeights struct {
	Lexical float64
	Vector  float64
}

func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Lexical: 0.5, Vector: 0.5}
}
