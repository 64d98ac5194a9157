package scheduler

import (
	"errors"
	"fmt"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrDuplicateTask indicates a task ID was added to a graph twice.
var ErrDuplicateTask = errors.New("duplicate task id")

// ErrUnknownDependency indicates a task depends on an ID not yet in the graph.
var ErrUnknownDependency = errors.New("unknown dependency")

// StructuralError reports an invalid graph handed to the scheduler. It is
// raised before any task runs; it signals a programming error by the caller
// that built the graph, not an execution failure.
type StructuralError struct {
	// GraphID identifies the offending graph.
	GraphID string
	// Err is the underlying structural problem.
	Err error
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return fmt.Sprintf("invalid graph %s: %v", e.GraphID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StructuralError) Unwrap() error {
	return e.Err
}

// SubstitutionError reports a {{variable}} placeholder that could not be
// resolved before invoking a task. The task fails fast without consuming
// retries and without the capability being called.
type SubstitutionError struct {
	// TaskID is the task whose query could not be resolved.
	TaskID string
	// Variable is the placeholder name that failed to resolve.
	Variable string
	// Reason explains why resolution failed.
	Reason string
}

// Error implements the error interface.
func (e *SubstitutionError) Error() string {
	return fmt.Sprintf("task %s: unresolved placeholder {{%s}}: %s", e.TaskID, e.Variable, e.Reason)
}

// TimeoutError reports a task invocation that exceeded its configured timeout.
type TimeoutError struct {
	// TaskID is the task that timed out.
	TaskID string
	// Timeout is the configured limit that was exceeded.
	Timeout string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out after %s", e.TaskID, e.Timeout)
}
