package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/core/ports"
	"github.com/regulait/parecer/internal/prompt"
)

type AnswerConfig struct {
	DefaultK         int
	QuestionMinChars int
	QuestionMaxChars int
	ContextMaxChars  int
	DefaultStrategy  domain.RetrievalStrategy
}

func DefaultAnswerConfig() AnswerConfig {
	return AnswerConfig{
		DefaultK:         5,
		QuestionMinChars: 5,
		QuestionMaxChars: 1000,
		ContextMaxChars:  4000,
		DefaultStrategy:  domain.StrategyHybrid,
	}
}

func (c AnswerConfig) normalize() AnswerConfig {
	out := c
	def := DefaultAnswerConfig()
	if out.DefaultK <= 0 {
		out.DefaultK = def.DefaultK
	}
	if out.QuestionMinChars <= 0 {
		out.QuestionMinChars = def.QuestionMinChars
	}
	if out.QuestionMaxChars <= out.QuestionMinChars {
		out.QuestionMaxChars = def.QuestionMaxChars
	}
	if out.ContextMaxChars <= 0 {
		out.ContextMaxChars = def.ContextMaxChars
	}
	if out.DefaultStrategy == "" {
		out.DefaultStrategy = def.DefaultStrategy
	}
	return out
}

type evidenceRetriever interface {
	Retrieve(ctx context.Context, question string, strategy domain.RetrievalStrategy, k int) ([]domain.Evidence, []string, error)
}

// AnswerUseCase answers questions against the indexed corpus: retrieve,
// format, generate, validate. It also serves evidence-only searches. Every
// degradation surfaces as a warning on the result rather than an error.
type AnswerUseCase struct {
	retriever evidenceRetriever
	generator ports.AnswerGenerator
	validator *Validator
	prompts   *prompt.Registry
	audit     ports.AuditLogger
	cfg       AnswerConfig
}

func NewAnswerUseCase(
	retriever evidenceRetriever,
	generator ports.AnswerGenerator,
	validator *Validator,
	prompts *prompt.Registry,
	audit ports.AuditLogger,
	cfg AnswerConfig,
) *AnswerUseCase {
	return &AnswerUseCase{
		retriever: retriever,
		generator: generator,
		validator: validator,
		prompts:   prompts,
		audit:     audit,
		cfg:       cfg.normalize(),
	}
}

// AnswerQuestion runs the full question-answering flow. The returned result
// always carries evidence (possibly empty), a generated or canned answer and
// a validation verdict; infrastructure trouble between retrieval and
// generation degrades the verdict instead of failing the call.
func (uc *AnswerUseCase) AnswerQuestion(ctx context.Context, req domain.AnswerRequest) (*domain.AnswerResult, error) {
	start := time.Now()

	question, err := uc.normalizeQuestion(req.Question)
	if err != nil {
		return nil, err
	}
	strategy, err := uc.resolveStrategy(req.Strategy, req.UseRerank)
	if err != nil {
		return nil, err
	}
	k := req.K
	if k == 0 {
		k = uc.cfg.DefaultK
	}

	evidence, warnings, err := uc.retriever.Retrieve(ctx, question, strategy, k)
	if err != nil {
		return nil, err
	}

	result := &domain.AnswerResult{
		Evidence: evidence,
		Strategy: strategy,
	}

	if len(evidence) == 0 {
		result.Answer = uc.prompts.NoEvidenceAnswer()
		result.Verdict = domain.ValidationVerdict{
			ConfidenceLabel: domain.ConfidenceInsufficient,
			SupportScore:    0,
			Warnings:        append(warnings, "Nenhuma evidência retornada para sustentar a resposta."),
		}
		uc.recordAudit(ctx, domain.AuditEventAnswer, question, strategy, k, result, time.Since(start))
		return result, nil
	}

	contextBlock := formatContext(evidence, uc.cfg.ContextMaxChars)
	answerPrompt := uc.prompts.AnswerPrompt(question, contextBlock)

	answer, genErr := uc.generator.GenerateFromPrompt(ctx, answerPrompt)
	if genErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Error("answer_generation_failed", "error", genErr)
		result.Answer = ""
		result.Verdict = domain.ValidationVerdict{
			ConfidenceLabel: domain.ConfidenceInsufficient,
			SupportScore:    0,
			Warnings:        append(warnings, "Geração de resposta indisponível; exibindo apenas as evidências."),
		}
		uc.recordAudit(ctx, domain.AuditEventAnswer, question, strategy, k, result, time.Since(start))
		return result, nil
	}

	result.Answer = strings.TrimSpace(answer)
	verdict := uc.validator.Validate(question, result.Answer, evidence)
	verdict.Warnings = append(warnings, verdict.Warnings...)
	result.Verdict = verdict

	uc.recordAudit(ctx, domain.AuditEventAnswer, question, strategy, k, result, time.Since(start))
	return result, nil
}

// SearchEvidence returns evidence for a question without generation or
// validation.
func (uc *AnswerUseCase) SearchEvidence(ctx context.Context, question string, strategy domain.RetrievalStrategy, k int) ([]domain.Evidence, []string, error) {
	start := time.Now()

	normalized, err := uc.normalizeQuestion(question)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := uc.resolveStrategy(strategy, false)
	if err != nil {
		return nil, nil, err
	}
	if k == 0 {
		k = uc.cfg.DefaultK
	}

	evidence, warnings, err := uc.retriever.Retrieve(ctx, normalized, resolved, k)
	if err != nil {
		return nil, nil, err
	}

	uc.recordAudit(ctx, domain.AuditEventSearch, normalized, resolved, k, &domain.AnswerResult{
		Evidence: evidence,
		Strategy: resolved,
		Verdict:  domain.ValidationVerdict{Warnings: warnings},
	}, time.Since(start))

	return evidence, warnings, nil
}

func (uc *AnswerUseCase) normalizeQuestion(question string) (string, error) {
	trimmed := strings.TrimSpace(question)
	n := len([]rune(trimmed))
	if n < uc.cfg.QuestionMinChars {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate question",
			fmt.Errorf("question must have at least %d characters", uc.cfg.QuestionMinChars))
	}
	if n > uc.cfg.QuestionMaxChars {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate question",
			fmt.Errorf("question must have at most %d characters", uc.cfg.QuestionMaxChars))
	}
	return trimmed, nil
}

func (uc *AnswerUseCase) resolveStrategy(strategy domain.RetrievalStrategy, useRerank bool) (domain.RetrievalStrategy, error) {
	if strategy == "" {
		strategy = uc.cfg.DefaultStrategy
	}
	switch strategy {
	case domain.StrategyVectorOnly, domain.StrategyLexicalOnly, domain.StrategyHybrid, domain.StrategyHybridRerank:
	default:
		return "", domain.WrapError(domain.ErrInvalidStrategy, "resolve strategy", fmt.Errorf("strategy %q", strategy))
	}
	if useRerank && strategy == domain.StrategyHybrid {
		strategy = domain.StrategyHybridRerank
	}
	return strategy, nil
}

func (uc *AnswerUseCase) recordAudit(
	ctx context.Context,
	eventType string,
	question string,
	strategy domain.RetrievalStrategy,
	k int,
	result *domain.AnswerResult,
	elapsed time.Duration,
) {
	if uc.audit == nil {
		return
	}
	event := domain.AuditEvent{
		Timestamp:     time.Now().UTC(),
		RequestID:     domain.RequestIDFromContext(ctx),
		EventType:     eventType,
		Question:      question,
		Strategy:      string(strategy),
		K:             k,
		EvidenceCount: len(result.Evidence),
		Confidence:    result.Verdict.ConfidenceLabel,
		SupportScore:  result.Verdict.SupportScore,
		ElapsedMS:     elapsed.Milliseconds(),
		Warnings:      result.Verdict.Warnings,
	}
	if err := uc.audit.Record(ctx, event); err != nil {
		slog.Error("audit_record_failed", "error", err, "event_type", eventType)
	}
}
