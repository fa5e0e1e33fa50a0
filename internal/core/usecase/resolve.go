package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/core/ports"
)

type ResolveUseCase struct {
	reader ports.CaseStudyReader
	logger *slog.Logger
}

func NewResolveUseCase(reader ports.CaseStudyReader, logger *slog.Logger) *ResolveUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolveUseCase{reader: reader, logger: logger}
}

// Resolve rebuilds a full case study from either of its identities. The case
// id is tried first, then the chunk id. It returns nil, nil when nothing
// matches.
func (uc *ResolveUseCase) Resolve(ctx context.Context, caseID, chunkID string) (*domain.Document, error) {
	caseID = strings.TrimSpace(caseID)
	chunkID = strings.TrimSpace(chunkID)
	if caseID == "" && chunkID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve case study", errors.New("case_id or chunk_id is required"))
	}

	if caseID != "" {
		snap, err := uc.reader.FindCaseStudy(ctx, caseID)
		if err != nil {
			return nil, storeFailure("resolve case study", err)
		}
		if snap != nil {
			return domain.AssembleDocument(*snap), nil
		}
	}

	if chunkID != "" {
		snap, err := uc.reader.FindCaseStudyByChunk(ctx, chunkID)
		if err != nil {
			return nil, storeFailure("resolve case study by chunk", err)
		}
		if snap != nil {
			return domain.AssembleDocument(*snap), nil
		}
	}

	uc.logger.Info("case_study_not_found", "case_id", caseID, "chunk_id", chunkID)
	return nil, nil
}

func storeFailure(operation string, err error) error {
	if domain.IsKind(err, domain.ErrStoreUnavailable) {
		return err
	}
	return domain.WrapError(domain.ErrStoreUnavailable, operation, err)
}
