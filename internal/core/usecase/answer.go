package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/core/ports"
)

const evidenceLimit = 3

type AnswerConfig struct {
	Threshold         float64
	TopN              int
	CompletionTimeout time.Duration
	WebTimeout        time.Duration
}

type AnswerUseCase struct {
	retriever ports.Retriever
	generator ports.AnswerGenerator
	web       ports.WebSearcher
	cfg       AnswerConfig
	logger    *slog.Logger
}

// NewAnswerUseCase wires the answer flow. web may be nil, in which case every
// fallback degrades to the fixed unavailable message.
func NewAnswerUseCase(
	retriever ports.Retriever,
	generator ports.AnswerGenerator,
	web ports.WebSearcher,
	cfg AnswerConfig,
	logger *slog.Logger,
) *AnswerUseCase {
	if cfg.TopN <= 0 {
		cfg.TopN = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerUseCase{
		retriever: retriever,
		generator: generator,
		web:       web,
		cfg:       cfg,
		logger:    logger,
	}
}

// Decide selects exactly one outcome: grounded when there is at least one
// candidate and the best score reaches the threshold.
func Decide(candidates []domain.Candidate, bestScore, threshold float64) domain.Outcome {
	if len(candidates) > 0 && bestScore >= threshold {
		return domain.OutcomeGrounded
	}
	return domain.OutcomeFallback
}

func (uc *AnswerUseCase) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is empty"))
	}

	candidates, best, err := uc.retriever.RetrieveTopN(ctx, question)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Question:  question,
		BestScore: best,
		Evidence:  evidenceFrom(candidates),
	}
	answer.Outcome = Decide(candidates, best, uc.cfg.Threshold)
	uc.logger.Info("grounding_decision",
		"outcome", answer.Outcome,
		"candidates", len(candidates),
		"best_score", best,
		"threshold", uc.cfg.Threshold,
	)

	switch answer.Outcome {
	case domain.OutcomeGrounded:
		text, err := uc.ComposeAnswer(ctx, question, candidates)
		if err != nil {
			return nil, err
		}
		answer.Grounded = true
		answer.Text = text
	default:
		answer.Text, answer.CitationURL = uc.WebFallbackAnswer(ctx, question)
	}
	return answer, nil
}

// ComposeAnswer asks the generator to answer from the top candidates only.
// Generator failures are returned, never replaced with a canned answer.
func (uc *AnswerUseCase) ComposeAnswer(ctx context.Context, question string, candidates []domain.Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "compose answer", errors.New("no sources"))
	}
	if len(candidates) > uc.cfg.TopN {
		candidates = candidates[:uc.cfg.TopN]
	}

	cctx := ctx
	if uc.cfg.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, uc.cfg.CompletionTimeout)
		defer cancel()
	}
	text, err := uc.generator.Complete(cctx, groundedSystemPrompt, buildGroundedPrompt(question, candidates))
	if err != nil {
		return "", domain.WrapError(domain.ErrCompletion, "compose answer", err)
	}
	return text, nil
}

// WebFallbackAnswer never fails: when the capability is missing or errors,
// the fixed unavailable message is returned with no citation.
func (uc *AnswerUseCase) WebFallbackAnswer(ctx context.Context, question string) (string, string) {
	if uc.web == nil {
		return domain.WebUnavailableAnswer, ""
	}

	wctx := ctx
	if uc.cfg.WebTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, uc.cfg.WebTimeout)
		defer cancel()
	}
	result, err := uc.web.SearchAnswer(wctx, question)
	if err != nil {
		uc.logger.Warn("web_fallback_unavailable", "error", domain.WrapError(domain.ErrFallbackCapability, "web search", err))
		return domain.WebUnavailableAnswer, ""
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = domain.WebAnswerPlaceholder
	}
	return domain.WebAnswerPrefix + text, strings.TrimSpace(result.CitationURL)
}

func evidenceFrom(candidates []domain.Candidate) []domain.Evidence {
	n := min(len(candidates), evidenceLimit)
	out := make([]domain.Evidence, 0, n)
	for _, c := range candidates[:n] {
		out = append(out, domain.NewEvidence(c))
	}
	return out
}
