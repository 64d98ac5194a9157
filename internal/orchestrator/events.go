// Package orchestrator wires planning, scheduling, and aggregation into a
// single workflow pipeline.
package orchestrator

import (
	"time"
)

// EventType represents the type of workflow event.
type EventType string

const (
	// EventWorkflowStarted indicates a workflow run has begun.
	EventWorkflowStarted EventType = "workflow_started"
	// EventPlanCreated indicates the planner produced a task plan.
	EventPlanCreated EventType = "plan_created"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task exhausted its retries and failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task was skipped because a dependency
	// did not succeed.
	EventTaskSkipped EventType = "task_skipped"
	// EventWorkflowCompleted indicates the entire workflow is done.
	EventWorkflowCompleted EventType = "workflow_completed"
	// EventWorkflowFailed indicates the workflow could not run at all.
	EventWorkflowFailed EventType = "workflow_failed"
)

// Event represents a progress event emitted during a workflow run.
// These events are used to stream status to callers such as the CLI.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// WorkflowID identifies the run this event belongs to.
	WorkflowID string
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time, set on completion events.
	Duration time.Duration
}
