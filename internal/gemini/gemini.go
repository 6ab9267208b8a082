// Package gemini implements model.Provider on the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/stupiduntilnot/ielts-tutor/internal/model"
)

// Provider generates single-prompt completions with a Gemini model.
type Provider struct {
	client *genai.Client
	model  string
}

// NewProvider creates a Gemini provider. baseURL may be empty for the public endpoint.
func NewProvider(ctx context.Context, apiKey, baseURL, modelName string) (*Provider, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{client: client, model: modelName}, nil
}

// Generate sends the prompt with the persona as system instruction.
func (p *Provider) Generate(ctx context.Context, req model.Request) (model.CompletionResponse, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		TopP:             genai.Ptr(req.TopP),
		TopK:             genai.Ptr(req.TopK),
		ResponseMIMEType: req.ResponseMIMEType,
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.Prompt), config)
	if err != nil {
		return model.CompletionResponse{}, fmt.Errorf("gemini generate content: %w", err)
	}

	var result model.CompletionResponse
	if resp.UsageMetadata != nil {
		result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return result, model.ErrEmptyResponse
	}
	result.Content = content
	return result, nil
}
