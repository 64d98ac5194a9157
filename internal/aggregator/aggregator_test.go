package aggregator

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ShayCichocki/cascade/internal/llm"
	"github.com/ShayCichocki/cascade/pkg/models"
)

// scriptedCompleter returns canned responses in order and records what it
// was asked.
type scriptedCompleter struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (s *scriptedCompleter) Complete(_ context.Context, messages []llm.Message, _ float64, _ int) (string, error) {
	s.calls++
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	s.prompts = append(s.prompts, b.String())
	if s.err != nil {
		return "", s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func score(f float64) *float64 { return &f }

func src(origin, content string) models.SourceResult {
	return models.SourceResult{Origin: origin, Content: content}
}

func TestDeduplicate_ExactDuplicates(t *testing.T) {
	results := []models.SourceResult{
		src("a", "Paris is the capital of France"),
		src("b", "  paris is the capital of France.  "),
		src("c", "Berlin is the capital of Germany"),
	}

	kept := deduplicate(results, DefaultSimilarityThreshold)
	if len(kept) != 2 {
		t.Fatalf("expected 2 results after dedup, got %d", len(kept))
	}
	if kept[0].Origin != "a" {
		t.Errorf("first occurrence should win, got origin %q", kept[0].Origin)
	}
}

func TestDeduplicate_NearDuplicates(t *testing.T) {
	results := []models.SourceResult{
		src("a", "Paris is the capital of France"),
		src("b", "Paris is the capitol of France"),
	}

	kept := deduplicate(results, DefaultSimilarityThreshold)
	if len(kept) != 1 {
		t.Fatalf("expected near-duplicates to merge, got %d results", len(kept))
	}
}

func TestDeduplicate_DistinctKept(t *testing.T) {
	results := []models.SourceResult{
		src("a", "Paris is the capital of France"),
		src("b", "The Eiffel Tower is 330 meters tall"),
		src("c", "France uses the euro"),
	}

	kept := deduplicate(results, DefaultSimilarityThreshold)
	if len(kept) != 3 {
		t.Fatalf("distinct results should survive dedup, got %d of 3", len(kept))
	}
}

func TestDeduplicate_Idempotent(t *testing.T) {
	results := []models.SourceResult{
		src("a", "Paris is the capital of France"),
		src("b", "paris is the capital of france"),
		src("c", "France uses the euro"),
	}

	once := deduplicate(results, DefaultSimilarityThreshold)
	twice := deduplicate(once, DefaultSimilarityThreshold)
	if len(once) != len(twice) {
		t.Errorf("dedup not idempotent: %d then %d", len(once), len(twice))
	}
}

func TestDeduplicate_SkipsEmpty(t *testing.T) {
	results := []models.SourceResult{
		src("a", "   "),
		src("b", "real content"),
	}

	kept := deduplicate(results, DefaultSimilarityThreshold)
	if len(kept) != 1 || kept[0].Origin != "b" {
		t.Fatalf("blank content should be dropped, got %+v", kept)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name    string
		results []models.SourceResult
		want    float64
	}{
		{
			name:    "empty",
			results: nil,
			want:    0,
		},
		{
			name:    "single unscored source",
			results: []models.SourceResult{src("a", "x")},
			// one origin of five, neutral score
			want: 0.4*0.2 + 0.6*0.5,
		},
		{
			name: "five perfect sources saturate",
			results: []models.SourceResult{
				{Origin: "a", Content: "x", Score: score(1)},
				{Origin: "b", Content: "x", Score: score(1)},
				{Origin: "c", Content: "x", Score: score(1)},
				{Origin: "d", Content: "x", Score: score(1)},
				{Origin: "e", Content: "x", Score: score(1)},
			},
			want: 1.0,
		},
		{
			name: "extra origins past saturation do not raise it",
			results: []models.SourceResult{
				{Origin: "a", Content: "x", Score: score(1)},
				{Origin: "b", Content: "x", Score: score(1)},
				{Origin: "c", Content: "x", Score: score(1)},
				{Origin: "d", Content: "x", Score: score(1)},
				{Origin: "e", Content: "x", Score: score(1)},
				{Origin: "f", Content: "x", Score: score(1)},
			},
			want: 1.0,
		},
		{
			name: "mixed scores average",
			results: []models.SourceResult{
				{Origin: "a", Content: "x", Score: score(0.8)},
				{Origin: "b", Content: "y"},
			},
			want: 0.4*0.4 + 0.6*0.65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidence(tt.results)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("confidence = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("confidence %v out of [0,1]", got)
			}
		})
	}
}

func TestAggregate_Concatenate(t *testing.T) {
	a := New(nil)
	results := []models.SourceResult{
		src("weather", "sunny, 28C"),
		src("news", "festival this weekend"),
	}

	agg := a.Aggregate(context.Background(), "plan my day", results, StrategyConcatenate)
	if !strings.Contains(agg.Summary, "[weather] sunny, 28C") {
		t.Errorf("summary missing labeled weather result: %q", agg.Summary)
	}
	if !strings.Contains(agg.Summary, "[news] festival this weekend") {
		t.Errorf("summary missing labeled news result: %q", agg.Summary)
	}
	if len(agg.Sources) != 2 {
		t.Errorf("expected 2 source attributions, got %d", len(agg.Sources))
	}
	if agg.Confidence <= 0 {
		t.Errorf("expected positive confidence, got %v", agg.Confidence)
	}
}

func TestAggregate_Empty(t *testing.T) {
	a := New(nil)
	agg := a.Aggregate(context.Background(), "anything", nil, StrategyConcatenate)
	if agg.Confidence != 0 {
		t.Errorf("empty input should yield zero confidence, got %v", agg.Confidence)
	}
	if agg.Summary == "" {
		t.Error("expected a placeholder summary for empty input")
	}
}

func TestAggregate_RankOrdersByScore(t *testing.T) {
	a := New(nil)
	results := []models.SourceResult{
		{Origin: "low", Content: "weak answer", Score: score(0.2)},
		{Origin: "high", Content: "strong answer", Score: score(0.9)},
		{Origin: "mid", Content: "middling answer", Score: score(0.5)},
	}

	agg := a.Aggregate(context.Background(), "q", results, StrategyRank)
	if len(agg.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(agg.Sources))
	}
	wantOrder := []string{"high", "mid", "low"}
	for i, want := range wantOrder {
		if agg.Sources[i].Origin != want {
			t.Errorf("rank position %d: got %q, want %q", i, agg.Sources[i].Origin, want)
		}
	}
	if len(agg.KeyPoints) != 3 {
		t.Errorf("expected key points for each ranked result, got %d", len(agg.KeyPoints))
	}
}

func TestAggregate_RankCapsAtTopN(t *testing.T) {
	a := New(nil, WithTopN(2))
	results := []models.SourceResult{
		{Origin: "a", Content: "alpha result", Score: score(0.9)},
		{Origin: "b", Content: "bravo result", Score: score(0.8)},
		{Origin: "c", Content: "charlie result", Score: score(0.7)},
	}

	agg := a.Aggregate(context.Background(), "q", results, StrategyRank)
	if len(agg.Sources) != 2 {
		t.Fatalf("expected rank to keep 2, got %d", len(agg.Sources))
	}
	if strings.Contains(agg.Summary, "charlie") {
		t.Error("lowest-ranked result should not appear in summary")
	}
}

func TestAggregate_RankUnscoredKeepsOrder(t *testing.T) {
	a := New(nil)
	results := []models.SourceResult{
		src("first", "one distinct thing"),
		src("second", "another distinct thing"),
	}

	agg := a.Aggregate(context.Background(), "q", results, StrategyRank)
	if agg.Sources[0].Origin != "first" || agg.Sources[1].Origin != "second" {
		t.Errorf("unscored results should keep input order, got %+v", agg.Sources)
	}
}

func TestAggregate_Synthesize(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []string{`{"summary": "Paris, sunny all week.", "key_points": ["capital is Paris", "sunny"]}`},
	}
	a := New(completer)
	results := []models.SourceResult{
		src("geo", "The capital of France is Paris"),
		src("weather", "Sunny all week in Paris"),
	}

	agg := a.Aggregate(context.Background(), "where and what weather", results, StrategySynthesize)
	if completer.calls != 1 {
		t.Fatalf("expected one model call, got %d", completer.calls)
	}
	if agg.Summary != "Paris, sunny all week." {
		t.Errorf("unexpected summary %q", agg.Summary)
	}
	if len(agg.KeyPoints) != 2 {
		t.Errorf("expected 2 key points, got %d", len(agg.KeyPoints))
	}
	if !strings.Contains(completer.prompts[0], "[geo]") {
		t.Error("synthesis prompt should label sources with origins")
	}
	if !strings.Contains(completer.prompts[0], "where and what weather") {
		t.Error("synthesis prompt should carry the original request")
	}
}

func TestAggregate_SynthesizeFallsBackOnError(t *testing.T) {
	completer := &scriptedCompleter{err: errors.New("model unavailable")}
	a := New(completer)
	results := []models.SourceResult{src("a", "only answer")}

	agg := a.Aggregate(context.Background(), "q", results, StrategySynthesize)
	if !strings.Contains(agg.Summary, "[a] only answer") {
		t.Errorf("expected concatenation fallback, got %q", agg.Summary)
	}
}

func TestAggregate_SynthesizeFallsBackOnGarbage(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"I cannot produce JSON today"}}
	a := New(completer)
	results := []models.SourceResult{src("a", "only answer")}

	agg := a.Aggregate(context.Background(), "q", results, StrategySynthesize)
	if !strings.Contains(agg.Summary, "[a] only answer") {
		t.Errorf("expected concatenation fallback, got %q", agg.Summary)
	}
}

func TestAggregate_SynthesizeNilCompleter(t *testing.T) {
	a := New(nil)
	results := []models.SourceResult{src("a", "only answer")}

	agg := a.Aggregate(context.Background(), "q", results, StrategySynthesize)
	if !strings.Contains(agg.Summary, "[a] only answer") {
		t.Errorf("nil completer should concatenate, got %q", agg.Summary)
	}
}

func TestMergeRanked(t *testing.T) {
	a := New(nil)
	lists := [][]models.SourceResult{
		{src("e1", "first engine top"), src("e1", "first engine second")},
		{src("e2", "second engine top"), src("e2", "second engine second")},
	}

	merged := a.MergeRanked(lists, 3)
	if len(merged) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(merged))
	}
	if merged[0].Content != "first engine top" || merged[1].Content != "second engine top" {
		t.Errorf("expected round-robin interleave, got %+v", merged)
	}
}

func TestMergeRanked_Deduplicates(t *testing.T) {
	a := New(nil)
	lists := [][]models.SourceResult{
		{src("e1", "Shared answer")},
		{src("e2", "shared answer.")},
	}

	merged := a.MergeRanked(lists, 0)
	if len(merged) != 1 {
		t.Fatalf("expected cross-list dedup, got %d results", len(merged))
	}
}

func TestSynthesizeFromNamedOutputs(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []string{`{"summary": "combined", "key_points": []}`},
	}
	a := New(completer)

	agg := a.SynthesizeFromNamedOutputs(context.Background(), "req", map[string]string{
		"subtask_2": "beta output",
		"subtask_1": "alpha output",
	})
	if agg.Summary != "combined" {
		t.Fatalf("unexpected summary %q", agg.Summary)
	}
	// Keys are sorted, so subtask_1 must appear before subtask_2.
	prompt := completer.prompts[0]
	if strings.Index(prompt, "[subtask_1]") > strings.Index(prompt, "[subtask_2]") {
		t.Error("named outputs should be ordered by key")
	}
}

func TestStrategyValid(t *testing.T) {
	for _, s := range []Strategy{StrategyConcatenate, StrategyRank, StrategySynthesize} {
		if !s.Valid() {
			t.Errorf("strategy %q should be valid", s)
		}
	}
	if Strategy("vote").Valid() {
		t.Error("unknown strategy should be invalid")
	}
}
