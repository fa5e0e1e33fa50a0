package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/infrastructure/resilience"
	goopenai "github.com/sashabaranov/go-openai"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Options struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	ChatModel  string
	WebModel   string
	// Dimensions is forwarded to the embeddings endpoint when positive.
	Dimensions int
}

// Client talks to OpenAI or an OpenAI-compatible endpoint. It serves the
// embedder, answer generator and web searcher ports.
type Client struct {
	api        *goopenai.Client
	httpClient *http.Client
	apiKey     string
	baseURL    string
	embedModel string
	chatModel  string
	webModel   string
	dimensions int
	exec       *resilience.Executor
}

func New(opts Options, exec *resilience.Executor) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}

	cfg := goopenai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient

	return &Client{
		api:        goopenai.NewClientWithConfig(cfg),
		httpClient: httpClient,
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		embedModel: opts.EmbedModel,
		chatModel:  opts.ChatModel,
		webModel:   opts.WebModel,
		dimensions: opts.Dimensions,
		exec:       exec,
	}
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(c.embedModel),
	}
	if c.dimensions > 0 && strings.HasPrefix(c.embedModel, "text-embedding-3") {
		req.Dimensions = c.dimensions
	}

	resp, err := resilience.Call(ctx, c.exec, "openai.embed", 0, func(callCtx context.Context) (goopenai.EmbeddingResponse, error) {
		return c.api.CreateEmbeddings(callCtx, req)
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("openai embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = item.Embedding
	}
	return out, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: user})

	req := goopenai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: 0.2,
	}
	resp, err := resilience.Call(ctx, c.exec, "openai.complete", 0, func(callCtx context.Context) (goopenai.ChatCompletionResponse, error) {
		return c.api.CreateChatCompletion(callCtx, req)
	}, classifyOpenAIError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("openai complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned from openai")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	return resilience.ClassifyHTTP(err)
}

func classifyStatus(code int) resilience.ErrorClassification {
	if resilience.IsRetryableHTTPStatus(code) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyOpenAIError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
