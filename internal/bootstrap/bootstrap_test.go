package bootstrap

import (
	"testing"
	"time"

	"github.com/kirillkom/case-study-search/internal/config"
	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/infrastructure/resilience"
)

func TestBuildLLMOpenAIServesAllPorts(t *testing.T) {
	embedder, generator, web, err := buildLLM(config.Config{
		LLMProvider:       "openai",
		OpenAIAPIKey:      "sk-test",
		WebFallbackEnable: true,
		EmbedDim:          1536,
	}, resilience.NewExecutor(resilience.DefaultConfig()))
	if err != nil {
		t.Fatalf("buildLLM() error = %v", err)
	}
	if embedder == nil || generator == nil || web == nil {
		t.Fatalf("expected embedder, generator and web searcher")
	}
}

func TestBuildLLMDisablesWebFallback(t *testing.T) {
	_, _, web, err := buildLLM(config.Config{
		LLMProvider:  "openai",
		OpenAIAPIKey: "sk-test",
	}, nil)
	if err != nil {
		t.Fatalf("buildLLM() error = %v", err)
	}
	if web != nil {
		t.Fatalf("expected no web searcher when fallback is disabled")
	}
}

func TestBuildLLMOllamaHasNoWebSearch(t *testing.T) {
	embedder, generator, web, err := buildLLM(config.Config{
		LLMProvider:       "ollama",
		OllamaURL:         "http://localhost:11434",
		WebFallbackEnable: true,
	}, nil)
	if err != nil {
		t.Fatalf("buildLLM() error = %v", err)
	}
	if embedder == nil || generator == nil {
		t.Fatalf("expected ollama embedder and generator")
	}
	if web != nil {
		t.Fatalf("ollama provider must not offer web search")
	}
}

func TestBuildLLMRejectsMisconfiguration(t *testing.T) {
	for name, cfg := range map[string]config.Config{
		"missing key":      {LLMProvider: "openai"},
		"unknown provider": {LLMProvider: "bard"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := buildLLM(cfg, nil)
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestResilienceConfigMapsSettings(t *testing.T) {
	rc := resilienceConfig(config.Config{
		RetryMaxAttempts:   5,
		RetryBackoff:       50 * time.Millisecond,
		BreakerEnabled:     false,
		BreakerOpenTimeout: 10 * time.Second,
	})
	if rc.RetryMaxAttempts != 5 || rc.RetryInitialBackoff != 50*time.Millisecond || rc.RetryMaxBackoff != 200*time.Millisecond {
		t.Fatalf("unexpected retry settings %+v", rc)
	}
	if rc.BreakerEnabled || rc.BreakerOpenTimeout != 10*time.Second {
		t.Fatalf("unexpected breaker settings %+v", rc)
	}
}
