package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/ShayCichocki/cascade/internal/capability"
	"github.com/ShayCichocki/cascade/pkg/models"
)

func newTestPool(t *testing.T, block chan struct{}) (*Pool, *WorkflowStore) {
	t.Helper()

	registry := capability.NewRegistry()
	err := registry.Register(models.KindConverse, func(ctx context.Context, query string, _ map[string]any) (any, error) {
		if block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return "done: " + query, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Planner falls back to a single converse subtask on unusable output,
	// which keeps pool tests independent of plan generation.
	completer := &scriptedCompleter{responses: []string{"nope"}}
	orch := newTestOrchestrator(t, completer, registry, WithStrategy("concatenate"))

	store := NewWorkflowStore(10, time.Hour)
	t.Cleanup(store.Close)
	return NewPool(orch, store), store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestPool_SubmitStoresExecution(t *testing.T) {
	pool, store := newTestPool(t, nil)

	id, err := pool.Submit("summarize the news")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id == "" {
		t.Fatal("Submit returned empty ID")
	}

	waitFor(t, func() bool { return store.Get(id) != nil })
	exec := store.Get(id)
	if exec.Request != "summarize the news" {
		t.Errorf("stored request = %q", exec.Request)
	}
	if exec.Result == nil || !exec.Result.Success {
		t.Errorf("expected successful stored result, got %+v", exec.Result)
	}

	pool.Stop()
}

func TestPool_RejectsEmptyRequest(t *testing.T) {
	pool, _ := newTestPool(t, nil)
	defer pool.Stop()

	if _, err := pool.Submit(""); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestPool_CountAndCancel(t *testing.T) {
	block := make(chan struct{})
	pool, store := newTestPool(t, block)

	id, err := pool.Submit("long running work")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return pool.Count() == 1 })

	if !pool.Cancel(id) {
		t.Error("Cancel should report the workflow as running")
	}
	waitFor(t, func() bool { return pool.Count() == 0 })

	if pool.Cancel(id) {
		t.Error("Cancel after completion should report false")
	}

	// Canceled run is still recorded with its partial result.
	waitFor(t, func() bool { return store.Get(id) != nil })
	if exec := store.Get(id); exec.Result != nil && exec.Result.Success {
		t.Error("canceled workflow should not be marked successful")
	}

	close(block)
	pool.Stop()
}

func TestPool_StopWaitsForRuns(t *testing.T) {
	block := make(chan struct{})
	pool, store := newTestPool(t, block)

	id, err := pool.Submit("work")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, func() bool { return pool.Count() == 1 })

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(block)
	}()
	pool.Stop()

	if store.Get(id) == nil {
		t.Error("Stop should wait for in-flight runs to be stored")
	}
	// Event channel is closed after Stop; draining must terminate.
	for range pool.Events() {
	}
}
