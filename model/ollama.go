package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"qaforge/types"

	"github.com/pkoukk/tiktoken-go"
)

// OllamaGenerator runs the same generation prompt against a local Ollama
// instance.
type OllamaGenerator struct {
	apiURL string
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaGenerator(apiURL string) *OllamaGenerator {
	return &OllamaGenerator{apiURL: apiURL}
}

func (g *OllamaGenerator) Generate(ctx context.Context, chunkText string, settings types.GenerationSettings) ([]Candidate, Usage, error) {
	start := time.Now()
	defer func() {
		log.Printf("[GENERATE] ollama call took %v", time.Since(start))
	}()

	prompt := buildPrompt(chunkText, settings)
	if count, err := CountTokens(systemPrompt + prompt); err == nil {
		log.Printf("[GENERATE] prompt size: %d tokens", count)
	}

	reqBody, err := json.Marshal(ollamaGenerateRequest{
		Model:  settings.Model,
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.apiURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, Usage{}, fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, Usage{}, fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	raw := collectResponse(body)
	candidates, err := ParseCandidates(raw)
	if err != nil {
		return nil, Usage{}, err
	}
	return candidates, Usage{}, nil
}

// collectResponse handles both single-object and streamed bodies.
func collectResponse(body []byte) string {
	var single ollamaGenerateResponse
	if err := json.Unmarshal(body, &single); err == nil && single.Response != "" {
		return single.Response
	}

	var output bytes.Buffer
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk ollamaGenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		output.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	return output.String()
}

func CountTokens(text string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
