package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/case-study-search/internal/config"
	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/core/ports"
	"github.com/kirillkom/case-study-search/internal/core/usecase"
	graphstore "github.com/kirillkom/case-study-search/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/case-study-search/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/case-study-search/internal/infrastructure/llm/openai"
	"github.com/kirillkom/case-study-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/case-study-search/internal/infrastructure/resilience"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Store     *graphstore.Store
	Queue     *nats.Queue
	Publisher *usecase.ChunkPublisher

	Indexes  *usecase.IndexUseCase
	Ingest   *usecase.IngestUseCase
	Retrieve *usecase.RetrieveUseCase
	Answer   *usecase.AnswerUseCase
	Resolve  *usecase.ResolveUseCase

	exec *resilience.Executor
}

// New opens the graph store and wires the use cases. The chunk queue is
// connected separately with ConnectQueue by the processes that need it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	exec := resilience.NewExecutor(resilienceConfig(cfg))

	embedder, generator, web, err := buildLLM(cfg, exec)
	if err != nil {
		return nil, err
	}

	store, err := graphstore.Open(ctx, graphstore.Options{
		URI:         cfg.Neo4jURI,
		User:        cfg.Neo4jUser,
		Password:    cfg.Neo4jPassword,
		Database:    cfg.Neo4jDatabase,
		MaxPoolSize: cfg.Neo4jMaxPoolSize,
		Timeout:     cfg.StoreTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}

	retrieveUC := usecase.NewRetrieveUseCase(embedder, store, usecase.RetrieveConfig{
		TopK:          cfg.TopK,
		Weights:       domain.FusionWeights{Lexical: cfg.LexicalWeight, Vector: cfg.VectorWeight},
		EmbedTimeout:  cfg.EmbedTimeout,
		SearchTimeout: cfg.SearchTimeout,
	}, logger)

	answerUC := usecase.NewAnswerUseCase(retrieveUC, generator, web, usecase.AnswerConfig{
		Threshold:         cfg.HybridAccept,
		TopN:              cfg.TopN,
		CompletionTimeout: cfg.CompletionTimeout,
		WebTimeout:        cfg.WebTimeout,
	}, logger)

	logger.Info("app_initialized",
		"llm_provider", cfg.LLMProvider,
		"neo4j_database", cfg.Neo4jDatabase,
		"web_fallback", web != nil,
		"embed_dim", cfg.EmbedDim,
	)

	return &App{
		Config: cfg,
		Logger: logger,
		Store:  store,

		Indexes:  usecase.NewIndexUseCase(store),
		Ingest:   usecase.NewIngestUseCase(store, embedder, cfg.EmbedDim, logger),
		Retrieve: retrieveUC,
		Answer:   answerUC,
		Resolve:  usecase.NewResolveUseCase(store, logger),

		exec: exec,
	}, nil
}

// ConnectQueue attaches the NATS chunk queue and the publisher built on it.
// lag may be nil.
func (a *App) ConnectQueue(lag func(time.Duration)) error {
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		ResilienceExecutor: a.exec,
		LagObserver:        lag,
	})
	if err != nil {
		return fmt.Errorf("init chunk queue: %w", err)
	}
	a.Queue = queue
	a.Publisher = usecase.NewChunkPublisher(queue, a.Config.EmbedDim)
	return nil
}

// Health pings the graph store.
func (a *App) Health(ctx context.Context) error {
	return a.Store.VerifyConnectivity(ctx)
}

func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Store.Close(ctx); err != nil {
			a.Logger.Warn("graph_store_close_failed", "error", err)
		}
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Policy(cfg.RetryMaxAttempts, cfg.RetryBackoff, cfg.BreakerEnabled, cfg.BreakerOpenTimeout)
}

// buildLLM selects the embedding and completion provider. The web searcher
// is nil when the provider has none or the fallback is disabled.
func buildLLM(cfg config.Config, exec *resilience.Executor) (ports.Embedder, ports.AnswerGenerator, ports.WebSearcher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "", ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, nil, nil, domain.WrapError(domain.ErrInvalidInput, "configure llm", errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
		client := openai.New(openai.Options{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			EmbedModel: cfg.OpenAIEmbedModel,
			ChatModel:  cfg.OpenAIChatModel,
			WebModel:   cfg.OpenAIWebModel,
			Dimensions: cfg.EmbedDim,
		}, exec)
		var web ports.WebSearcher
		if cfg.WebFallbackEnable {
			web = client
		}
		return client, client, web, nil
	case ProviderOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, exec)
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil, nil
	default:
		return nil, nil, nil, domain.WrapError(domain.ErrInvalidInput, "configure llm", fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider))
	}
}
