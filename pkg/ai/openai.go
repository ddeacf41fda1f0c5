package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient calls any OpenAI-compatible /v1 endpoint for chat completions
// and embeddings. Works with the hosted API and self-hosted gateways.
type OpenAIClient struct {
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	httpClient     *http.Client
}

// NewOpenAIClient builds a client. baseURL should include the /v1 prefix,
// e.g. "https://api.openai.com/v1".
func NewOpenAIClient(baseURL, apiKey, model, embeddingModel string) *OpenAIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &OpenAIClient{
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(apiKey),
		model:          strings.TrimSpace(model),
		embeddingModel: strings.TrimSpace(embeddingModel),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Generate implements TextGenerator using the chat completions API.
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message, params SamplingParams) (string, error) {
	if c.model == "" {
		return "", fmt.Errorf("generation model required")
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("at least one message required")
	}
	reqBody := oaiChatRequest{
		Model:    c.model,
		Messages: messages,
	}
	if params.MaxTokens > 0 {
		reqBody.MaxTokens = params.MaxTokens
	}
	if params.Temperature > 0 {
		reqBody.Temperature = params.Temperature
	}

	var chatResp oaiChatResponse
	if err := c.post(ctx, "/chat/completions", reqBody, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from chat api")
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from chat api")
	}
	return text, nil
}

// EmbedTexts implements Embedder using the embeddings API.
func (c *OpenAIClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embeddingModel == "" {
		return nil, fmt.Errorf("embedding model required")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	reqBody := oaiEmbeddingRequest{
		Model: c.embeddingModel,
		Input: texts,
	}
	var embResp oaiEmbeddingResponse
	if err := c.post(ctx, "/embeddings", reqBody, &embResp); err != nil {
		return nil, err
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embResp.Data), len(texts))
	}
	vectors := make([][]float32, len(texts))
	for _, item := range embResp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index out of range: %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Model returns the embedding model name.
func (c *OpenAIClient) Model() string { return c.embeddingModel }

func (c *OpenAIClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("openai api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("openai api error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai decode: %w", err)
	}
	return nil
}

// OpenAI-compatible request/response types.

type oaiChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type oaiEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type oaiEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
