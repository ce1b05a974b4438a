// Package bootstrap wires configuration into a ready-to-serve application:
// storage, indexes, providers, resilience policies and the use cases on top
// of them. Both binaries (api, worker) build the same App and pick the
// pieces they need.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/regulait/parecer/internal/config"
	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/core/ports"
	"github.com/regulait/parecer/internal/core/usecase"
	"github.com/regulait/parecer/internal/infrastructure/audit"
	"github.com/regulait/parecer/internal/infrastructure/chunking"
	"github.com/regulait/parecer/internal/infrastructure/extractor"
	"github.com/regulait/parecer/internal/infrastructure/lexical/bleve"
	"github.com/regulait/parecer/internal/infrastructure/llm/fallback"
	"github.com/regulait/parecer/internal/infrastructure/llm/ollama"
	"github.com/regulait/parecer/internal/infrastructure/llm/openai"
	"github.com/regulait/parecer/internal/infrastructure/queue/nats"
	"github.com/regulait/parecer/internal/infrastructure/repository/postgres"
	"github.com/regulait/parecer/internal/infrastructure/rerank/httpce"
	lexicalrerank "github.com/regulait/parecer/internal/infrastructure/rerank/lexical"
	"github.com/regulait/parecer/internal/infrastructure/resilience"
	"github.com/regulait/parecer/internal/infrastructure/storage/localfs"
	"github.com/regulait/parecer/internal/infrastructure/vector/pgvector"
	"github.com/regulait/parecer/internal/infrastructure/vector/qdrant"
	"github.com/regulait/parecer/internal/prompt"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	IngestUC  *usecase.IngestUseCase
	ProcessUC *usecase.ProcessUseCase
	AnswerUC  *usecase.AnswerUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure document schema: %w", err)
	}
	chunkStore := postgres.NewChunkStore(db)
	if err := chunkStore.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure chunk schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	// One executor per dependency class: providers get a per-attempt
	// timeout sized for model latency, infrastructure calls are bounded
	// by their own HTTP clients and the caller's context.
	providerPolicy := resilience.DefaultConfig()
	providerPolicy.AttemptTimeout = time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	providerExec := resilience.NewExecutor(providerPolicy)
	infraExec := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: infraExec,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	prompts, err := prompt.Load(cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: providerExec,
	})
	classifier := ollama.NewClassifier(ollamaClient, prompts)
	embedder := ollama.NewEmbedder(ollamaClient)

	var generator ports.AnswerGenerator = ollama.NewGenerator(ollamaClient)
	if cfg.OpenAIAPIKey != "" {
		secondary := openai.NewWithOptions(cfg.OpenAIAPIKey, cfg.OpenAIModel, openai.Options{
			ResilienceExecutor: providerExec,
		})
		generator = fallback.NewGenerator(generator, secondary)
	}

	vectorIdx, err := buildVectorIndex(cfg, db, infraExec)
	if err != nil {
		return nil, err
	}

	lexicalIdx, err := bleve.Open(cfg.BlevePath)
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	var reranker ports.RerankScorer = lexicalrerank.New()
	if cfg.RerankURL != "" {
		reranker = httpce.NewWithTimeout(cfg.RerankURL, time.Duration(cfg.RerankTimeoutMS)*time.Millisecond)
	}

	auditLog, err := audit.NewWriter(cfg.AuditPath, audit.Options{
		MaxBytes:        cfg.AuditMaxBytes,
		CompressRotated: cfg.AuditCompressRotated,
	})
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	defaultStrategy, err := domain.ParseStrategy(cfg.RetrievalStrategy)
	if err != nil {
		return nil, fmt.Errorf("parse default retrieval strategy: %w", err)
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.NewExtractor(storage)

	ingestUC := usecase.NewIngestUseCase(repo, storage, queue)
	processUC := usecase.NewProcessUseCase(repo, chunkStore, textExtractor, classifier, chunker, embedder, vectorIdx, lexicalIdx)
	retrieveUC := usecase.NewRetrieveUseCase(embedder, vectorIdx, lexicalIdx, chunkStore, reranker, usecase.RetrievalConfig{
		DefaultK:        cfg.RetrievalDefaultK,
		MaxK:            cfg.RetrievalMaxK,
		RRFK:            float64(cfg.RRFKConstant),
		RerankTopN:      cfg.RerankTopN,
		BranchTimeout:   time.Duration(cfg.BranchTimeoutMS) * time.Millisecond,
		RerankTimeout:   time.Duration(cfg.RerankTimeoutMS) * time.Millisecond,
		MaxExcerptChars: cfg.MaxExcerptChars,
	})
	validator := usecase.NewValidator(usecase.ValidatorConfig{
		Weights: usecase.ValidatorWeights{
			EvidencePresence:    cfg.ValidatorWeightPresence,
			LexicalOverlap:      cfg.ValidatorWeightOverlap,
			CitationConsistency: cfg.ValidatorWeightCitations,
			AnswerLength:        cfg.ValidatorWeightLength,
		},
		Thresholds: usecase.ValidatorThresholds{
			High:   cfg.ValidatorThresholdHigh,
			Medium: cfg.ValidatorThresholdMedium,
			Low:    cfg.ValidatorThresholdLow,
		},
		MinAnswerChars: cfg.ValidatorMinAnswerChars,
	})
	answerUC := usecase.NewAnswerUseCase(retrieveUC, generator, validator, prompts, auditLog, usecase.AnswerConfig{
		DefaultK:         cfg.RetrievalDefaultK,
		QuestionMinChars: cfg.QuestionMinChars,
		QuestionMaxChars: cfg.QuestionMaxChars,
		ContextMaxChars:  cfg.ContextMaxChars,
		DefaultStrategy:  defaultStrategy,
	})

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		AnswerUC:  answerUC,

		closeFn: func() {
			queue.Close()
			_ = lexicalIdx.Close()
			_ = auditLog.Close()
			_ = db.Close()
		},
	}, nil
}

func buildVectorIndex(cfg config.Config, db *sql.DB, exec *resilience.Executor) (ports.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "qdrant":
		return qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
			ResilienceExecutor: exec,
		}), nil
	case "pgvector":
		return pgvector.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q (want qdrant or pgvector)", cfg.VectorBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
