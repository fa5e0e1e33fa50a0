package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	Neo4jURI         string
	Neo4jUser        string
	Neo4jPassword    string
	Neo4jDatabase    string
	Neo4jMaxPoolSize int

	NATSURL     string
	NATSSubject string

	LLMProvider string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIEmbedModel string
	OpenAIChatModel  string
	OpenAIWebModel   string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	// EmbedDim defaults to the provider's stock embedding model: 1536 for
	// text-embedding-3-small, 768 for nomic-embed-text. Set EMBED_DIM when
	// the embed model changes.
	//
	// HybridAccept is compared against the best fused score. Min-max
	// normalisation maps each source's top hit to 1, so with equal weights
	// the best score is at least 0.5 whenever any source returns a positive
	// hit, and a threshold at or below 0.5 accepts every such retrieval.
	EmbedDim          int
	HybridAccept      float64
	TopK              int
	TopN              int
	LexicalWeight     float64
	VectorWeight      float64
	WebFallbackEnable bool

	StoreTimeout      time.Duration
	SearchTimeout     time.Duration
	EmbedTimeout      time.Duration
	CompletionTimeout time.Duration
	WebTimeout        time.Duration

	RetryMaxAttempts   int
	RetryBackoff       time.Duration
	BreakerEnabled     bool
	BreakerOpenTimeout time.Duration

	APIRateLimitRPS       float64
	APIRateLimitBurst     int
	APIMaxInFlight        int
	APIBackpressureWait   time.Duration
	APIRequestBodyMaxByte int64

	WorkerMetricsPort string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first, and CONFIG_FILE may point at a YAML file of
// KEY: value defaults; real environment variables win over both.
func Load() Config {
	_ = godotenv.Load()

	src := source{file: loadFileDefaults(os.Getenv("CONFIG_FILE"))}
	provider := strings.ToLower(src.str("LLM_PROVIDER", "openai"))

	return Config{
		APIPort:  src.str("API_PORT", "8080"),
		LogLevel: src.str("LOG_LEVEL", "info"),

		Neo4jURI:         src.str("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:        src.str("NEO4J_USER", "neo4j"),
		Neo4jPassword:    src.str("NEO4J_PASSWORD", ""),
		Neo4jDatabase:    src.str("NEO4J_DATABASE", "neo4j"),
		Neo4jMaxPoolSize: src.int("NEO4J_MAX_POOL_SIZE", 50),

		NATSURL:     src.str("NATS_URL", "nats://localhost:4222"),
		NATSSubject: src.str("NATS_SUBJECT", "casestudies.chunks"),

		LLMProvider: provider,

		OpenAIAPIKey:     src.str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    src.str("OPENAI_BASE_URL", ""),
		OpenAIEmbedModel: src.str("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		OpenAIChatModel:  src.str("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIWebModel:   src.str("OPENAI_WEB_MODEL", "gpt-4o-mini"),

		OllamaURL:        src.str("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   src.str("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: src.str("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		EmbedDim:          src.int("EMBED_DIM", defaultEmbedDim(provider)),
		HybridAccept:      src.float("HYBRID_ACCEPT", 0.35),
		TopK:              src.int("TOP_K", 8),
		TopN:              src.int("TOP_N", 3),
		LexicalWeight:     src.float("RAG_LEXICAL_WEIGHT", 0.5),
		VectorWeight:      src.float("RAG_VECTOR_WEIGHT", 0.5),
		WebFallbackEnable: src.bool("WEB_FALLBACK_ENABLED", true),

		StoreTimeout:      src.millis("STORE_TIMEOUT_MS", 10_000),
		SearchTimeout:     src.millis("SEARCH_TIMEOUT_MS", 5_000),
		EmbedTimeout:      src.millis("EMBED_TIMEOUT_MS", 15_000),
		CompletionTimeout: src.millis("COMPLETION_TIMEOUT_MS", 60_000),
		WebTimeout:        src.millis("WEB_TIMEOUT_MS", 60_000),

		RetryMaxAttempts:   src.int("RETRY_MAX_ATTEMPTS", 3),
		RetryBackoff:       src.millis("RETRY_BACKOFF_MS", 100),
		BreakerEnabled:     src.bool("BREAKER_ENABLED", true),
		BreakerOpenTimeout: src.millis("BREAKER_OPEN_TIMEOUT_MS", 30_000),

		APIRateLimitRPS:       src.float("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst:     src.int("API_RATE_LIMIT_BURST", 10),
		APIMaxInFlight:        src.int("API_MAX_IN_FLIGHT", 64),
		APIBackpressureWait:   src.millis("API_BACKPRESSURE_WAIT_MS", 50),
		APIRequestBodyMaxByte: int64(src.int("API_MAX_BODY_BYTES", 8<<20)),

		WorkerMetricsPort: src.str("WORKER_METRICS_PORT", "9090"),
	}
}

func defaultEmbedDim(provider string) int {
	if strings.TrimSpace(provider) == "ollama" {
		return 768
	}
	return 1536
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) str(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) int(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) float(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s source) bool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) millis(key string, fallback int) time.Duration {
	return time.Duration(s.int(key, fallback)) * time.Millisecond
}

func loadFileDefaults(path string) map[string]string {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprintf("%v", v)
	}
	return out
}
