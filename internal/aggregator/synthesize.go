package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ShayCichocki/cascade/internal/llm"
	"github.com/ShayCichocki/cascade/pkg/models"
)

const synthesisPrompt = `You are a synthesis engine. You are given a user request and a set of
partial results, each labeled with its origin. Combine them into one
coherent answer.

Respond with ONLY a JSON object in this shape:

{
  "summary": "unified answer to the request",
  "key_points": ["short factual point", "..."]
}

Rules:
- Resolve contradictions in favor of the majority of sources.
- Do not invent facts that no source supports.
- Keep key_points to at most 8 entries.`

type synthesisResponse struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

const (
	synthesisTemperature = 0.3
	synthesisMaxTokens   = 2048
)

func (a *Aggregator) synthesize(ctx context.Context, request string, results []models.SourceResult) *models.AggregatedResult {
	if a.completer == nil {
		return a.concatenate(results)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n\nPartial results:\n", request)
	for _, r := range results {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", r.Origin, r.Content)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: synthesisPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}

	raw, err := a.completer.Complete(ctx, messages, synthesisTemperature, synthesisMaxTokens)
	if err != nil {
		log.Printf("synthesis failed, falling back to concatenation: %v", err)
		return a.concatenate(results)
	}

	parsed, err := parseSynthesis(raw)
	if err != nil {
		log.Printf("synthesis response unusable, falling back to concatenation: %v", err)
		return a.concatenate(results)
	}

	return &models.AggregatedResult{
		Summary:    parsed.Summary,
		KeyPoints:  parsed.KeyPoints,
		Sources:    attributions(results),
		Confidence: confidence(results),
	}
}

func parseSynthesis(raw string) (*synthesisResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in synthesis response")
	}

	var resp synthesisResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("parsing synthesis response: %w", err)
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return nil, fmt.Errorf("synthesis response has empty summary")
	}
	return &resp, nil
}
