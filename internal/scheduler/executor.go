package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// ProgressFunc observes task state transitions during execution. The detail
// argument carries the task's result on success, the final error message on
// failure, and the blocking dependency ID on skip; nil otherwise. Callbacks
// are serialized; they must not block for long.
type ProgressFunc func(taskID string, status models.TaskStatus, detail any)

// placeholderRe matches {{variable}} references in task queries.
var placeholderRe = regexp.MustCompile(`\{\{([a-zA-Z0-9_\-]+)\}\}`)

// Execute runs the graph under its configured mode and returns the
// structured result. Task failures are reported inside the WorkflowResult;
// the returned error is non-nil only for structural problems or context
// cancellation. A graph executes at most once.
func (g *Graph) Execute(ctx context.Context, onProgress ProgressFunc) (*models.WorkflowResult, error) {
	g.mu.Lock()
	if g.executed {
		g.mu.Unlock()
		return nil, &StructuralError{GraphID: g.id, Err: fmt.Errorf("graph already executed")}
	}
	if err := g.validateLocked(); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	g.executed = true
	g.mu.Unlock()

	start := time.Now()
	var runErr error
	switch g.mode {
	case ModeSequential:
		runErr = g.executeSequential(ctx, onProgress)
	case ModeParallel:
		runErr = g.executeParallel(ctx, onProgress)
	default:
		runErr = g.executeDAG(ctx, onProgress)
	}

	return g.buildResult(start), runErr
}

// executeSequential runs tasks one at a time in insertion order. Insertion
// order is assumed to already satisfy the declared dependencies; failed
// dependencies still propagate as skips.
func (g *Graph) executeSequential(ctx context.Context, onProgress ProgressFunc) error {
	for _, id := range g.order {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t := g.tasks[id]
		if dep := g.failedDependency(t); dep != "" {
			g.markSkipped(t, dep, onProgress)
			continue
		}

		g.markRunning(t, onProgress)
		g.runTask(ctx, t, onProgress)
	}
	return ctx.Err()
}

// executeParallel launches every task at once. Validate has already
// rejected graphs with dependency edges for this mode.
func (g *Graph) executeParallel(ctx context.Context, onProgress ProgressFunc) error {
	var eg errgroup.Group
	for _, id := range g.order {
		t := g.tasks[id]
		g.markRunning(t, onProgress)
		eg.Go(func() error {
			g.runTask(ctx, t, onProgress)
			return nil
		})
	}
	// Task failures are recorded per task, never returned from the group.
	_ = eg.Wait()
	return ctx.Err()
}

// executeDAG is the primary mode: a single coordinating routine drives a
// bounded pool of concurrent task invocations, recomputing the ready set as
// each launched task reaches a terminal state.
func (g *Graph) executeDAG(ctx context.Context, onProgress ProgressFunc) error {
	completionCh := make(chan string, len(g.tasks))
	running := 0

	drain := func() {
		for running > 0 {
			<-completionCh
			running--
		}
	}

	for {
		// Propagate skips until stable: skipping one task may make its
		// dependents skippable in turn.
		for {
			g.mu.Lock()
			_, toSkip := g.readyLocked()
			for _, t := range toSkip {
				t.status = models.TaskStatusSkipped
			}
			g.mu.Unlock()

			if len(toSkip) == 0 {
				break
			}
			for _, t := range toSkip {
				g.notify(onProgress, t.ID, models.TaskStatusSkipped, t.skipDep)
			}
		}

		if ctx.Err() != nil {
			// Cancelled: no pending task starts; wait for in-flight
			// invocations so their outcomes land in the result.
			drain()
			return ctx.Err()
		}

		g.mu.Lock()
		ready, _ := g.readyLocked()
		pending := 0
		for _, t := range g.tasks {
			if t.status == models.TaskStatusPending {
				pending++
			}
		}
		g.mu.Unlock()

		if pending == 0 && running == 0 {
			return nil
		}

		launched := 0
		for _, t := range ready {
			if running >= g.maxParallel {
				break
			}
			g.markRunning(t, onProgress)
			running++
			launched++
			go func(t *Task) {
				g.runTask(ctx, t, onProgress)
				completionCh <- t.ID
			}(t)
		}

		if launched > 0 {
			continue
		}

		// Nothing launchable: wait for a completion (or cancellation) before
		// recomputing the ready set.
		select {
		case <-ctx.Done():
			drain()
			return ctx.Err()
		case <-completionCh:
			running--
		}
	}
}

// runTask resolves the task's query, then drives the retry loop until the
// task reaches a terminal state. The task must already be marked running.
func (g *Graph) runTask(ctx context.Context, t *Task, onProgress ProgressFunc) {
	query, err := g.resolveQuery(t)
	if err != nil {
		// Substitution failures never reach the capability and never retry.
		g.markFailed(t, err, onProgress)
		return
	}

	maxAttempts := t.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		g.mu.Lock()
		t.attempts++
		g.mu.Unlock()

		result, err := g.invoke(ctx, t, query)
		if err == nil {
			g.markSucceeded(t, result, onProgress)
			return
		}
		lastErr = err
		debugLog("[scheduler] graph %s: task %s attempt %d/%d failed: %v", g.id, t.ID, attempt, maxAttempts, err)
	}

	g.markFailed(t, lastErr, onProgress)
}

// invoke runs one attempt of the task's callable under its timeout. The
// callable runs in its own goroutine so that a body ignoring ctx still
// cannot hold the task past its deadline; cancellation is best-effort.
func (g *Graph) invoke(ctx context.Context, t *Task, query string) (any, error) {
	callCtx := ctx
	cancel := func() {}
	if t.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, t.Timeout)
	}
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := t.Fn(callCtx, query)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{TaskID: t.ID, Timeout: t.Timeout.String()}
		}
		return out.result, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{TaskID: t.ID, Timeout: t.Timeout.String()}
		}
		return nil, callCtx.Err()
	}
}

// resolveQuery substitutes {{variable}} placeholders in the task's query
// with the string form of the producing task's completed output.
func (g *Graph) resolveQuery(t *Task) (string, error) {
	if t.Query == "" || !placeholderRe.MatchString(t.Query) {
		return t.Query, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var substErr *SubstitutionError
	resolved := placeholderRe.ReplaceAllStringFunc(t.Query, func(m string) string {
		if substErr != nil {
			return m
		}
		name := placeholderRe.FindStringSubmatch(m)[1]

		producerID, ok := t.Vars[name]
		if !ok {
			substErr = &SubstitutionError{TaskID: t.ID, Variable: name, Reason: "no task bound to this variable"}
			return m
		}
		producer, ok := g.tasks[producerID]
		if !ok {
			substErr = &SubstitutionError{TaskID: t.ID, Variable: name, Reason: fmt.Sprintf("producing task %s not in graph", producerID)}
			return m
		}
		if producer.status != models.TaskStatusSucceeded {
			substErr = &SubstitutionError{TaskID: t.ID, Variable: name, Reason: fmt.Sprintf("producing task %s is %s", producerID, producer.status)}
			return m
		}
		return stringify(producer.result)
	})
	if substErr != nil {
		return "", substErr
	}
	return resolved, nil
}

// Placeholders returns the distinct {{variable}} names referenced in s, in
// order of first appearance.
func Placeholders(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Stringify converts a task output to its query-substitutable string form.
func Stringify(v any) string {
	return stringify(v)
}

// stringify converts a task output to its query-substitutable string form.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		if data, err := json.Marshal(val); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", val)
	}
}

// failedDependency returns the first dependency that did not succeed, or ""
// if every dependency succeeded.
func (g *Graph) failedDependency(t *Task) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, dep := range t.Dependencies {
		if g.tasks[dep].status != models.TaskStatusSucceeded {
			return dep
		}
	}
	return ""
}

// markRunning transitions a task to running before its goroutine starts, so
// ready-set recomputation never launches it twice.
func (g *Graph) markRunning(t *Task, onProgress ProgressFunc) {
	g.mu.Lock()
	t.status = models.TaskStatusRunning
	g.mu.Unlock()
	g.notify(onProgress, t.ID, models.TaskStatusRunning, nil)
}

// markSucceeded records a task's result and fires its success hook.
func (g *Graph) markSucceeded(t *Task, result any, onProgress ProgressFunc) {
	g.mu.Lock()
	t.status = models.TaskStatusSucceeded
	t.result = result
	g.mu.Unlock()

	if t.OnSuccess != nil {
		t.OnSuccess(t.ID, result)
	}
	g.notify(onProgress, t.ID, models.TaskStatusSucceeded, result)
}

// markFailed records a task's final error and fires its failure hook.
func (g *Graph) markFailed(t *Task, err error, onProgress ProgressFunc) {
	g.mu.Lock()
	t.status = models.TaskStatusFailed
	t.err = err
	g.mu.Unlock()

	if t.OnFailure != nil {
		t.OnFailure(t.ID, err)
	}
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	g.notify(onProgress, t.ID, models.TaskStatusFailed, detail)
}

// markSkipped transitions a task to skipped without invoking it.
func (g *Graph) markSkipped(t *Task, dep string, onProgress ProgressFunc) {
	g.mu.Lock()
	t.status = models.TaskStatusSkipped
	t.skipDep = dep
	g.mu.Unlock()
	g.notify(onProgress, t.ID, models.TaskStatusSkipped, dep)
}

// notify invokes the progress callback under the progress lock so observers
// see transitions one at a time.
func (g *Graph) notify(onProgress ProgressFunc, taskID string, status models.TaskStatus, detail any) {
	if onProgress == nil {
		return
	}
	g.progressMu.Lock()
	defer g.progressMu.Unlock()
	onProgress(taskID, status, detail)
}

// buildResult assembles the WorkflowResult from terminal task states.
func (g *Graph) buildResult(start time.Time) *models.WorkflowResult {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := &models.WorkflowResult{
		GraphID:   g.id,
		Results:   make(map[string]any),
		Errors:    make(map[string]string),
		Skipped:   make(map[string]string),
		TaskCount: len(g.tasks),
	}

	for _, id := range g.order {
		t := g.tasks[id]
		switch t.status {
		case models.TaskStatusSucceeded:
			result.Results[id] = t.result
			result.CompletedCount++
		case models.TaskStatusFailed:
			if t.err != nil {
				result.Errors[id] = t.err.Error()
			} else {
				result.Errors[id] = "unknown error"
			}
			result.FailedCount++
		case models.TaskStatusSkipped:
			result.Skipped[id] = fmt.Sprintf("dependency %s did not succeed", t.skipDep)
			result.SkippedCount++
		}
	}

	result.Success = result.CompletedCount == result.TaskCount
	result.ExecutionTime = time.Since(start)
	return result
}
