package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"relaybot/internal/types"
)

// GeminiClient implements Client on the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini-backed completion client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func geminiParts(parts []types.ContentPart) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case types.PartText:
			out = append(out, genai.NewPartFromText(p.Text))
		case types.PartImageURL:
			out = append(out, genai.NewPartFromURI(p.URL, "image/*"))
		case types.PartVideoURL:
			out = append(out, genai.NewPartFromURI(p.URL, "video/*"))
		}
	}
	return out
}

// Complete maps the turn list onto Gemini's content model: the system turn
// becomes the system instruction, assistant turns the model role.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
		Temperature:     genai.Ptr(float32(req.Temperature)),
	}

	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, t := range req.Turns {
		switch t.Role {
		case types.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(t.Text(), genai.RoleUser)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromParts(geminiParts(t.Content), genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromParts(geminiParts(t.Content), genai.RoleUser))
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("GenAI generate failed: %w", err)
	}
	if len(result.Candidates) == 0 {
		return Response{}, nil
	}
	return Response{Content: result.Text()}, nil
}
