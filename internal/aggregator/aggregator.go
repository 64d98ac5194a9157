package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/cascade/internal/llm"
	"github.com/ShayCichocki/cascade/pkg/models"
)

// Strategy selects how deduplicated source results are merged into a
// single aggregated answer.
type Strategy string

const (
	// StrategyConcatenate joins results in order with origin labels.
	StrategyConcatenate Strategy = "concatenate"
	// StrategyRank sorts results by score and keeps the top N.
	StrategyRank Strategy = "rank"
	// StrategySynthesize asks the model for a unified summary with
	// citations, falling back to concatenation when the model call fails.
	StrategySynthesize Strategy = "synthesize"
)

// Valid reports whether s is a recognized strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyConcatenate, StrategyRank, StrategySynthesize:
		return true
	}
	return false
}

const (
	// DefaultSimilarityThreshold is the minimum similarity ratio at which
	// two results are treated as near-duplicates.
	DefaultSimilarityThreshold = 0.85
	// DefaultTopN bounds how many results the rank strategy keeps.
	DefaultTopN = 10
)

// Aggregator merges the outputs of multiple tasks into one result with a
// confidence estimate. The zero value is not usable; call New.
type Aggregator struct {
	completer llm.Completer
	threshold float64
	topN      int
}

// Option adjusts aggregator behavior.
type Option func(*Aggregator)

// WithSimilarityThreshold overrides the near-duplicate cutoff. Values
// outside (0,1] are ignored.
func WithSimilarityThreshold(t float64) Option {
	return func(a *Aggregator) {
		if t > 0 && t <= 1 {
			a.threshold = t
		}
	}
}

// WithTopN overrides how many results the rank strategy keeps.
func WithTopN(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topN = n
		}
	}
}

// New creates an aggregator. The completer may be nil, in which case the
// synthesize strategy degrades to concatenation.
func New(completer llm.Completer, opts ...Option) *Aggregator {
	a := &Aggregator{
		completer: completer,
		threshold: DefaultSimilarityThreshold,
		topN:      DefaultTopN,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate deduplicates results and merges them using the given strategy.
// The request provides context for synthesis. An unknown strategy falls
// back to concatenation.
func (a *Aggregator) Aggregate(ctx context.Context, request string, results []models.SourceResult, strategy Strategy) *models.AggregatedResult {
	deduped := deduplicate(results, a.threshold)
	if len(deduped) == 0 {
		return &models.AggregatedResult{
			Summary: "No results to aggregate.",
		}
	}

	switch strategy {
	case StrategyRank:
		return a.rank(deduped)
	case StrategySynthesize:
		return a.synthesize(ctx, request, deduped)
	default:
		return a.concatenate(deduped)
	}
}

// MergeRanked interleaves multiple ranked lists round-robin, deduplicates
// the merged list, and caps it at maxResults. It preserves each list's
// internal order.
func (a *Aggregator) MergeRanked(lists [][]models.SourceResult, maxResults int) []models.SourceResult {
	var merged []models.SourceResult
	for i := 0; ; i++ {
		advanced := false
		for _, list := range lists {
			if i < len(list) {
				merged = append(merged, list[i])
				advanced = true
			}
		}
		if !advanced {
			break
		}
	}

	merged = deduplicate(merged, a.threshold)
	if maxResults > 0 && len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

// SynthesizeFromNamedOutputs aggregates a map of task outputs, using the
// map keys as origins. Outputs are ordered by key so the result is
// deterministic.
func (a *Aggregator) SynthesizeFromNamedOutputs(ctx context.Context, request string, outputs map[string]string) *models.AggregatedResult {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]models.SourceResult, 0, len(names))
	for _, name := range names {
		results = append(results, models.SourceResult{
			Origin:  name,
			Content: outputs[name],
		})
	}
	return a.Aggregate(ctx, request, results, StrategySynthesize)
}

func (a *Aggregator) concatenate(results []models.SourceResult) *models.AggregatedResult {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", r.Origin, r.Content)
	}
	return &models.AggregatedResult{
		Summary:    b.String(),
		Sources:    attributions(results),
		Confidence: confidence(results),
	}
}

func (a *Aggregator) rank(results []models.SourceResult) *models.AggregatedResult {
	ranked := make([]models.SourceResult, len(results))
	copy(ranked, results)

	// Stable so unscored results keep their original order relative to
	// each other.
	sort.SliceStable(ranked, func(i, j int) bool {
		return effectiveScore(ranked[i]) > effectiveScore(ranked[j])
	})
	if len(ranked) > a.topN {
		ranked = ranked[:a.topN]
	}

	keyPoints := make([]string, 0, len(ranked))
	for _, r := range ranked {
		keyPoints = append(keyPoints, truncate(r.Content, 120))
	}

	agg := a.concatenate(ranked)
	agg.KeyPoints = keyPoints
	return agg
}

func effectiveScore(r models.SourceResult) float64 {
	if r.Score != nil {
		return *r.Score
	}
	return neutralScore
}

func attributions(results []models.SourceResult) []models.SourceAttribution {
	attrs := make([]models.SourceAttribution, 0, len(results))
	for _, r := range results {
		attrs = append(attrs, models.SourceAttribution{
			Origin: r.Origin,
			Score:  effectiveScore(r),
		})
	}
	return attrs
}

func truncate(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max-3]) + "..."
}
