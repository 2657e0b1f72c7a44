package translate

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenerateResult carries a model response plus the finish reason the
// engine's error classifier inspects.
type GenerateResult struct {
	Text         string
	FinishReason string
}

// Client abstracts the LLM backend so the engine can be tested without a
// live API key; GeminiClient is the production implementation.
type Client interface {
	Generate(ctx context.Context, model, prompt string) (GenerateResult, error)
	// GenerateStream invokes onDelta with the full-so-far text of the
	// current response as tokens arrive.
	GenerateStream(ctx context.Context, model, prompt string, onDelta func(textSoFar string)) (GenerateResult, error)
	// OutputTokenCap returns the model family's conservative output
	// token ceiling, queried once and cached by the caller.
	OutputTokenCap(model string) int
}

// GeminiClient wraps google.golang.org/genai.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("translate: gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, model, prompt string) (GenerateResult, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return GenerateResult{}, err
	}
	return toResult(resp), nil
}

func (g *GeminiClient) GenerateStream(ctx context.Context, model, prompt string, onDelta func(string)) (GenerateResult, error) {
	var textSoFar string
	var finishReason string

	stream := g.client.Models.GenerateContentStream(ctx, model, genai.Text(prompt), nil)
	for resp, err := range stream {
		if err != nil {
			return GenerateResult{Text: textSoFar, FinishReason: finishReason}, err
		}
		chunk := extractText(resp)
		textSoFar += chunk
		if fr := extractFinishReason(resp); fr != "" {
			finishReason = fr
		}
		if onDelta != nil {
			onDelta(textSoFar)
		}
	}
	return GenerateResult{Text: textSoFar, FinishReason: finishReason}, nil
}

func (g *GeminiClient) OutputTokenCap(model string) int {
	return conservativeOutputCap(model)
}

// conservativeOutputCap gives a safe default per model family when the API
// does not expose one directly.
func conservativeOutputCap(model string) int {
	switch {
	case contains(model, "flash"):
		return 8192
	case contains(model, "pro"):
		return 8192
	default:
		return 4096
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func toResult(resp *genai.GenerateContentResponse) GenerateResult {
	return GenerateResult{Text: extractText(resp), FinishReason: extractFinishReason(resp)}
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Text()
}

func extractFinishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	return string(resp.Candidates[0].FinishReason)
}
