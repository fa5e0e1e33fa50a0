package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrCaseStudyNotFound  = errors.New("case study not found")
	ErrIndexProvisioning  = errors.New("index provisioning failed")
	ErrStoreUnavailable   = errors.New("graph store unavailable")
	ErrEmbedding          = errors.New("embedding failed")
	ErrCompletion         = errors.New("completion failed")
	ErrFallbackCapability = errors.New("web fallback capability failed")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
