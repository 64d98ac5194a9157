// Package scheduler validates and executes task graphs under sequential,
// parallel, or dependency-ordered execution modes.
package scheduler

import (
	"context"
	"time"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// DefaultMaxRetries is the retry budget applied by NewTask.
const DefaultMaxRetries = 3

// TaskFunc is the bound callable a task executes. The query argument is the
// task's query with all {{variable}} placeholders already resolved; tasks
// built directly (without a query) receive an empty string.
type TaskFunc func(ctx context.Context, query string) (any, error)

// Task is one execution unit in a graph. Its mutable state is owned
// exclusively by the graph's coordinating routine during execution.
type Task struct {
	// ID is unique within the graph.
	ID string
	// Name is a human-readable label; defaults to the ID.
	Name string
	// Fn is the bound callable.
	Fn TaskFunc
	// Query is the raw input, possibly containing {{variable}} placeholders.
	Query string
	// Vars maps placeholder names to the IDs of the tasks producing them.
	Vars map[string]string
	// Dependencies lists task IDs that must reach a terminal state first.
	Dependencies []string
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// Timeout bounds each individual attempt; zero means no limit.
	Timeout time.Duration
	// OnSuccess, if set, is invoked with the result after the task succeeds.
	OnSuccess func(id string, result any)
	// OnFailure, if set, is invoked with the final error after retries are
	// exhausted.
	OnFailure func(id string, err error)

	// Execution state, guarded by the owning graph's mutex.
	status   models.TaskStatus
	attempts int
	result   any
	err      error
	skipDep  string
}

// NewTask creates a task with default retry budget. Callers may adjust the
// exported fields before adding the task to a graph.
func NewTask(id string, fn TaskFunc) *Task {
	return &Task{
		ID:         id,
		Name:       id,
		Fn:         fn,
		MaxRetries: DefaultMaxRetries,
		status:     models.TaskStatusPending,
	}
}

// Status returns the task's current state. Only meaningful between
// executions or after Execute returns; during execution the graph owns it.
func (t *Task) Status() models.TaskStatus {
	return t.status
}

// Attempts returns how many times the callable was invoked.
func (t *Task) Attempts() int {
	return t.attempts
}

// Result returns the recorded output for a succeeded task.
func (t *Task) Result() any {
	return t.result
}

// Err returns the final error for a failed task.
func (t *Task) Err() error {
	return t.err
}
