package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

const maxRecordLine = 16 << 20

// readChunkRecords decodes one record per non-blank line.
func readChunkRecords(r io.Reader) ([]domain.ChunkRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLine)

	var records []domain.ChunkRecord
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec domain.ChunkRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read chunk records", fmt.Errorf("line %d: %w", line, err))
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chunk records: %w", err)
	}
	return records, nil
}
