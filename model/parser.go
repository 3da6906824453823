package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type candidateEnvelope struct {
	Cases []Candidate `json:"cases"`
}

// ParseCandidates extracts the JSON payload from a raw LLM response and
// returns the well-formed candidates it contains. Malformed entries are
// dropped one by one; only an unreadable payload is an error.
func ParseCandidates(raw string) ([]Candidate, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var envelope candidateEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		// Some models return a bare array instead of the envelope.
		var list []Candidate
		if err2 := json.Unmarshal([]byte(payload), &list); err2 != nil {
			return nil, fmt.Errorf("decode candidates: %w", err)
		}
		envelope.Cases = list
	}

	valid := make([]Candidate, 0, len(envelope.Cases))
	for _, c := range envelope.Cases {
		if c.Valid() {
			valid = append(valid, sanitize(c))
		}
	}
	return valid, nil
}

// Valid reports whether a candidate carries the minimum a test case needs.
func (c Candidate) Valid() bool {
	if strings.TrimSpace(c.Title) == "" {
		return false
	}
	for _, step := range c.Steps {
		if strings.TrimSpace(step) != "" {
			return true
		}
	}
	return false
}

func sanitize(c Candidate) Candidate {
	c.Title = strings.TrimSpace(c.Title)
	c.Expected = strings.TrimSpace(c.Expected)

	steps := make([]string, 0, len(c.Steps))
	for _, step := range c.Steps {
		if s := strings.TrimSpace(step); s != "" {
			steps = append(steps, s)
		}
	}
	c.Steps = steps

	tags := make([]string, 0, len(c.Tags))
	for _, tag := range c.Tags {
		if t := strings.TrimSpace(tag); t != "" {
			tags = append(tags, t)
		}
	}
	c.Tags = tags
	return c
}

// ExtractJSON pulls the first JSON object or array out of a chatty model
// response.
func ExtractJSON(s string) (string, error) {
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	if objStart == -1 && arrStart == -1 {
		return s, errors.New("no valid json found")
	}

	if objStart != -1 && (arrStart == -1 || objStart < arrStart) {
		end := strings.LastIndex(s, "}")
		if end <= objStart {
			return s, errors.New("no valid json found")
		}
		return s[objStart : end+1], nil
	}

	end := strings.LastIndex(s, "]")
	if end <= arrStart {
		return s, errors.New("no valid json found")
	}
	return s[arrStart : end+1], nil
}

func buildRepairPrompt(badOutput string) string {
	return fmt.Sprintf(`You previously returned invalid JSON.

Fix it. Output ONLY valid JSON with the same information, no explanations,
no markdown, no text outside the JSON.

INVALID OUTPUT:
<<<
%s
>>>
`, badOutput)
}
