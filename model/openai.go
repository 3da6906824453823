package model

import (
	"context"
	"fmt"
	"log"

	"qaforge/types"

	openai "github.com/sashabaranov/go-openai"
)

const maxParseAttempts = 2

// OpenAIGenerator asks an OpenAI chat model for test case candidates.
type OpenAIGenerator struct {
	client *openai.Client
}

func NewOpenAIGenerator(apiKey, baseURL string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, chunkText string, settings types.GenerationSettings) ([]Candidate, Usage, error) {
	prompt := buildPrompt(chunkText, settings)
	usage := Usage{}

	var lastErr error
	for attempt := 1; attempt <= maxParseAttempts; attempt++ {
		raw, u, err := g.complete(ctx, prompt, settings)
		usage.PromptTokens += u.PromptTokens
		usage.CompletionTokens += u.CompletionTokens
		if err != nil {
			return nil, usage, err
		}

		candidates, err := ParseCandidates(raw)
		if err == nil {
			return candidates, usage, nil
		}

		log.Printf("[GENERATE] attempt %d returned unparseable output: %v", attempt, err)
		lastErr = err
		prompt = buildRepairPrompt(raw)
	}

	return nil, usage, fmt.Errorf("parse candidates after %d attempts: %w", maxParseAttempts, lastErr)
}

func (g *OpenAIGenerator) complete(ctx context.Context, prompt string, settings types.GenerationSettings) (string, Usage, error) {
	req := openai.ChatCompletionRequest{
		Model:       settings.Model,
		Temperature: float32(settings.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("create openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("openai chat completion returned no choices")
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}
