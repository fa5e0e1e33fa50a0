package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

type chunkEnvelope struct {
	PublishedAt time.Time          `json:"published_at"`
	Record      domain.ChunkRecord `json:"record"`
}

func encodeChunk(rec domain.ChunkRecord, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(chunkEnvelope{PublishedAt: now.UTC(), Record: rec})
	if err != nil {
		return nil, fmt.Errorf("encode chunk message: %w", err)
	}
	return payload, nil
}

func decodeChunk(data []byte) (domain.ChunkRecord, time.Time, error) {
	var env chunkEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.ChunkRecord{}, time.Time{}, domain.WrapError(domain.ErrInvalidInput, "decode chunk message", err)
	}
	if env.Record.ChunkID == "" {
		return domain.ChunkRecord{}, time.Time{}, domain.WrapError(domain.ErrInvalidInput, "decode chunk message", fmt.Errorf("missing record"))
	}
	return env.Record, env.PublishedAt, nil
}
