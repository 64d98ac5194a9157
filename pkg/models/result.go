package models

import "time"

// WorkflowResult summarizes a completed (or partially completed) graph execution.
type WorkflowResult struct {
	// GraphID identifies the executed graph.
	GraphID string `json:"graph_id"`
	// Success is true only if every task in the graph succeeded.
	Success bool `json:"success"`
	// Results maps task ID to its recorded output.
	Results map[string]any `json:"results"`
	// Errors maps task ID to the final failure message for failed tasks.
	Errors map[string]string `json:"errors,omitempty"`
	// Skipped maps task ID to the dependency that caused it to be skipped.
	// Skipped tasks appear here, never in Errors.
	Skipped map[string]string `json:"skipped,omitempty"`
	// ExecutionTime is the wall-clock duration of the run.
	ExecutionTime time.Duration `json:"execution_time"`
	// TaskCount is the total number of tasks in the graph.
	TaskCount int `json:"task_count"`
	// CompletedCount is the number of tasks that succeeded.
	CompletedCount int `json:"completed_count"`
	// FailedCount is the number of tasks that failed after retries.
	FailedCount int `json:"failed_count"`
	// SkippedCount is the number of tasks skipped due to upstream failures.
	SkippedCount int `json:"skipped_count"`
}

// SourceResult is one raw input to aggregation: a piece of content with
// its origin and an optional relevance score.
type SourceResult struct {
	// Origin names where the content came from (a task ID, search engine, etc).
	Origin string `json:"origin"`
	// Content is the raw text to aggregate.
	Content string `json:"content"`
	// Score is an optional relevance score in [0,1]. Nil means unscored.
	Score *float64 `json:"score,omitempty"`
}

// SourceAttribution records one origin's contribution to an aggregated result.
type SourceAttribution struct {
	// Origin names the contributing source.
	Origin string `json:"origin"`
	// Score is the score used during aggregation (neutral default if unscored).
	Score float64 `json:"score"`
}

// AggregatedResult is the final combined answer with source attributions.
type AggregatedResult struct {
	// Summary is the synthesized or concatenated answer text.
	Summary string `json:"summary"`
	// KeyPoints lists short supporting statements extracted during synthesis.
	KeyPoints []string `json:"key_points,omitempty"`
	// Sources lists the origins that contributed, with their scores.
	Sources []SourceAttribution `json:"sources,omitempty"`
	// Confidence estimates result reliability in [0,1], derived from the
	// number of distinct origins and their mean score.
	Confidence float64 `json:"confidence"`
}
