package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Pool runs workflows concurrently through a shared orchestrator and
// retains finished executions in a WorkflowStore.
type Pool struct {
	orch  *Orchestrator
	store *WorkflowStore

	// running tracks in-flight workflows by ID so they can be canceled
	// individually.
	running map[string]context.CancelFunc
	mu      sync.Mutex

	// ctx and cancel for pool lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks in-flight workflow runs
	wg sync.WaitGroup
}

// NewPool creates a pool around an orchestrator and a store. The store may
// be nil, in which case finished executions are discarded.
func NewPool(orch *Orchestrator, store *WorkflowStore) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		orch:    orch,
		store:   store,
		running: make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit starts a new workflow run for the request and returns its ID.
func (p *Pool) Submit(request string) (string, error) {
	if request == "" {
		return "", fmt.Errorf("request must not be empty")
	}

	id := uuid.New().String()[:8]
	runCtx, cancelRun := context.WithCancel(p.ctx)

	p.mu.Lock()
	p.running[id] = cancelRun
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancelRun()

		exec, err := p.orch.RunWithID(runCtx, id, request)
		if err != nil {
			log.Printf("[pool] workflow %s failed: %v", id, err)
		}
		if p.store != nil {
			p.store.Put(exec)
		}

		p.mu.Lock()
		delete(p.running, id)
		p.mu.Unlock()
	}()

	return id, nil
}

// Cancel stops the workflow with the given ID. It reports whether the
// workflow was still running.
func (p *Pool) Cancel(id string) bool {
	p.mu.Lock()
	cancelRun, ok := p.running[id]
	p.mu.Unlock()
	if ok {
		cancelRun()
	}
	return ok
}

// Events returns the aggregated event stream for all runs in this pool.
func (p *Pool) Events() <-chan Event {
	return p.orch.Events()
}

// Count returns the number of workflows currently running.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// Stop cancels all running workflows, waits for them to finish, and closes
// the event stream.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.orch.CloseEvents()
}
