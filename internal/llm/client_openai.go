package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"relaybot/internal/types"
)

// OpenAIConfig holds configuration for the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 60 * time.Second,
	}
}

// OpenAIClient implements Client against any chat-completions compatible
// endpoint. It performs exactly one attempt per Complete call.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIClient creates a client with default config.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(DefaultOpenAIConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a client with custom config.
func NewOpenAIClientWithConfig(config OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// openAIMessage carries one turn on the wire. Content is a string for plain
// text turns and a part array when media references are attached.
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAITextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIURLPart struct {
	Type     string        `json:"type"`
	ImageURL *openAIRefURL `json:"image_url,omitempty"`
	VideoURL *openAIRefURL `json:"video_url,omitempty"`
}

type openAIRefURL struct {
	URL string `json:"url"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func encodeMessage(t types.Turn) openAIMessage {
	msg := openAIMessage{Role: string(t.Role)}

	textOnly := true
	for _, p := range t.Content {
		if p.Type != types.PartText {
			textOnly = false
			break
		}
	}
	if textOnly {
		msg.Content = t.Text()
		return msg
	}

	parts := make([]any, 0, len(t.Content))
	for _, p := range t.Content {
		switch p.Type {
		case types.PartText:
			parts = append(parts, openAITextPart{Type: "text", Text: p.Text})
		case types.PartImageURL:
			parts = append(parts, openAIURLPart{Type: "image_url", ImageURL: &openAIRefURL{URL: p.URL}})
		case types.PartVideoURL:
			parts = append(parts, openAIURLPart{Type: "video_url", VideoURL: &openAIRefURL{URL: p.URL}})
		}
	}
	msg.Content = parts
	return msg
}

// Complete sends the request and returns the first choice's content. A 2xx
// response with zero choices maps to an empty Response with nil error.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, &APIError{Status: http.StatusUnauthorized, Message: "API key not configured"}
	}

	messages := make([]openAIMessage, 0, len(req.Turns))
	for _, t := range req.Turns {
		messages = append(messages, encodeMessage(t))
	}

	body, err := json.Marshal(openAIRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, &APIError{Status: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return Response{}, nil
	}

	return Response{Content: strings.TrimSpace(parsed.Choices[0].Message.Content)}, nil
}
