package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/case-study-search/internal/core/domain"
	"github.com/kirillkom/case-study-search/internal/infrastructure/resilience"
)

// responsesPayload is the subset of the Responses API body this client
// reads. Every field is optional.
type responsesPayload struct {
	OutputText string           `json:"output_text"`
	Output     []responseOutput `json:"output"`
}

type responseOutput struct {
	Type    string            `json:"type"`
	Text    string            `json:"text"`
	URL     string            `json:"url"`
	URLs    []string          `json:"urls"`
	Content []responseContent `json:"content"`
}

type responseContent struct {
	Type        string               `json:"type"`
	Text        string               `json:"text"`
	Annotations []responseAnnotation `json:"annotations"`
}

type responseAnnotation struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// SearchAnswer asks the web-search tool of the Responses API. Unexpected
// output shapes yield an empty result rather than an error.
func (c *Client) SearchAnswer(ctx context.Context, question string) (domain.WebResult, error) {
	if strings.TrimSpace(c.webModel) == "" {
		return domain.WebResult{}, errors.New("web search model is not configured")
	}
	body, err := json.Marshal(map[string]any{
		"model":       c.webModel,
		"tools":       []map[string]string{{"type": "web_search"}},
		"tool_choice": "auto",
		"input":       question,
	})
	if err != nil {
		return domain.WebResult{}, fmt.Errorf("marshal web search request: %w", err)
	}

	raw, err := resilience.Call(ctx, c.exec, "openai.web_search", 0, func(callCtx context.Context) ([]byte, error) {
		return c.postResponses(callCtx, body)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return domain.WebResult{}, wrapTemporaryIfNeeded("openai web search", err)
	}
	return parseWebResult(raw), nil
}

func (c *Client) postResponses(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create web search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &resilience.HTTPStatusError{
			Provider:   "openai",
			Operation:  "web search",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read web search response: %w", err)
	}
	return raw, nil
}

func parseWebResult(raw []byte) domain.WebResult {
	var payload responsesPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.WebResult{}
	}

	text := strings.TrimSpace(payload.OutputText)
	citation := ""
	var parts []string
	for _, item := range payload.Output {
		if citation == "" {
			citation = firstNonEmpty(append([]string{item.URL}, item.URLs...)...)
		}
		if strings.TrimSpace(item.Text) != "" {
			parts = append(parts, strings.TrimSpace(item.Text))
		}
		for _, content := range item.Content {
			if content.Type == "output_text" && strings.TrimSpace(content.Text) != "" {
				parts = append(parts, strings.TrimSpace(content.Text))
			}
			for _, ann := range content.Annotations {
				if citation == "" && ann.Type == "url_citation" {
					citation = strings.TrimSpace(ann.URL)
				}
			}
		}
	}
	if text == "" {
		text = strings.Join(parts, "\n")
	}
	return domain.WebResult{Text: text, CitationURL: citation}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
