package model

import (
	"context"
	"fmt"
	"strings"

	"qaforge/types"
)

// Candidate is one test case proposed by the LLM for a chunk. Candidates
// are schema-checked before use; a malformed candidate is dropped on its
// own, it never fails the chunk.
type Candidate struct {
	Title    string   `json:"title"`
	Steps    []string `json:"steps"`
	Expected string   `json:"expected"`
	Tags     []string `json:"tags"`
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Generator produces test case candidates for one chunk of document text.
type Generator interface {
	Generate(ctx context.Context, chunkText string, settings types.GenerationSettings) ([]Candidate, Usage, error)
}

// NewGenerator picks the backend from config.
func NewGenerator(cfg types.Config) (Generator, error) {
	switch cfg.LLMProvider {
	case "ollama":
		return NewOllamaGenerator(cfg.OllamaURL), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBase), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}

const systemPrompt = `You are a QA engineer generating test cases from requirement documents.
Return ONLY a valid JSON object of the form:
{"cases":[{"title":"","steps":[""],"expected":"","tags":[""]}]}
Do not include explanations, comments or markdown outside of the JSON.`

func buildPrompt(chunkText string, settings types.GenerationSettings) string {
	var sb strings.Builder

	maxCases := settings.MaxCases
	if maxCases <= 0 {
		maxCases = 10
	}
	fmt.Fprintf(&sb, "Generate up to %d test cases for the following requirement text.\n", maxCases)

	if settings.IncludeNegative {
		sb.WriteString("Include negative test cases.\n")
	}
	if settings.IncludeEdgeCases {
		sb.WriteString("Include edge case tests.\n")
	}
	if instructions := strings.TrimSpace(settings.Instructions); instructions != "" {
		sb.WriteString("Additional instructions: ")
		sb.WriteString(instructions)
		sb.WriteString("\n")
	}

	sb.WriteString("\nRequirement text:\n")
	sb.WriteString(chunkText)
	return sb.String()
}
