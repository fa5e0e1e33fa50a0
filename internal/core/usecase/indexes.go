package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/core/ports"
)

type IndexUseCase struct {
	provisioner ports.IndexProvisioner
}

func NewIndexUseCase(provisioner ports.IndexProvisioner) *IndexUseCase {
	return &IndexUseCase{provisioner: provisioner}
}

// EnsureIndexes is safe to call on every start.
func (uc *IndexUseCase) EnsureIndexes(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "ensure indexes", fmt.Errorf("dimension must be positive, got %d", dimension))
	}
	if err := uc.provisioner.EnsureIndexes(ctx, dimension); err != nil {
		if domain.IsKind(err, domain.ErrIndexProvisioning) {
			return err
		}
		return domain.WrapError(domain.ErrIndexProvisioning, "ensure indexes", err)
	}
	return nil
}
