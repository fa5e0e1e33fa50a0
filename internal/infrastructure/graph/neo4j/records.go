package neo4j

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float64:
		return int64(t)
	case float32:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return 0
		}
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return 0
	}
}

func scoredChunkFromRecord(record *neo4j.Record) domain.ScoredChunk {
	m := record.AsMap()
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			ChunkID:   asString(m["chunk_id"]),
			Text:      asString(m["text"]),
			Order:     int(asInt64(m["ord"])),
			CharStart: int(asInt64(m["char_start"])),
			CharEnd:   int(asInt64(m["char_end"])),
		},
		Score: asFloat64(m["score"]),
	}
}

func snapshotFromRecord(record *neo4j.Record) *domain.CaseStudySnapshot {
	m := record.AsMap()
	props, _ := m["props"].(map[string]any)
	snap := &domain.CaseStudySnapshot{Properties: props}
	if snap.Properties == nil {
		snap.Properties = map[string]any{}
	}

	raw, _ := m["fragments"].([]any)
	for _, item := range raw {
		frag, ok := item.(map[string]any)
		if !ok {
			continue
		}
		snap.Fragments = append(snap.Fragments, domain.Fragment{
			ChunkID: asString(frag["id"]),
			Order:   asInt64(frag["i"]),
			Text:    asString(frag["t"]),
		})
	}
	return snap
}

func embeddingParam(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
