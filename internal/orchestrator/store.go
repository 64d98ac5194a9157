package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// Execution is the stored record of one workflow run.
type Execution struct {
	// ID is the short unique identifier for the run.
	ID string
	// Request is the original user request.
	Request string
	// Plan is the task plan the run executed.
	Plan *models.TaskPlan
	// Result holds per-task outcomes.
	Result *models.WorkflowResult
	// Aggregated is the merged final answer.
	Aggregated *models.AggregatedResult
	// StartedAt is when the run began.
	StartedAt time.Time
	// CompletedAt is when the run finished, successfully or not.
	CompletedAt time.Time
}

const (
	// DefaultStoreCapacity bounds how many executions are retained.
	DefaultStoreCapacity = 100
	// DefaultStoreTTL is how long a finished execution stays retrievable.
	DefaultStoreTTL = time.Hour

	janitorInterval = time.Minute
)

// WorkflowStore retains finished executions in memory, bounded by capacity
// and by age. Oldest entries are evicted first when the capacity is hit;
// a background janitor removes entries past their TTL.
type WorkflowStore struct {
	mu       sync.RWMutex
	execs    map[string]*Execution
	capacity int
	ttl      time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewWorkflowStore creates a store and starts its expiry janitor.
// Non-positive capacity or ttl fall back to the defaults.
func NewWorkflowStore(capacity int, ttl time.Duration) *WorkflowStore {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	if ttl <= 0 {
		ttl = DefaultStoreTTL
	}
	s := &WorkflowStore{
		execs:    make(map[string]*Execution),
		capacity: capacity,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Put stores a finished execution, evicting the oldest entry if the store
// is at capacity.
func (s *WorkflowStore) Put(exec *Execution) {
	if exec == nil || exec.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.execs[exec.ID]; !exists && len(s.execs) >= s.capacity {
		s.evictOldestLocked()
	}
	s.execs[exec.ID] = exec
}

// Get returns the execution with the given ID, or nil if it is unknown or
// has expired.
func (s *WorkflowStore) Get(id string) *Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.execs[id]
}

// List returns all retained executions, most recently completed first.
func (s *WorkflowStore) List() []*Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Execution, 0, len(s.execs))
	for _, e := range s.execs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out
}

// Len returns how many executions are currently retained.
func (s *WorkflowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.execs)
}

// Close stops the expiry janitor. The store remains usable after Close,
// but expired entries are no longer collected automatically.
func (s *WorkflowStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *WorkflowStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.execs {
		if oldestID == "" || e.CompletedAt.Before(oldest) {
			oldestID = id
			oldest = e.CompletedAt
		}
	}
	if oldestID != "" {
		delete(s.execs, oldestID)
	}
}

func (s *WorkflowStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.expire(now)
		}
	}
}

func (s *WorkflowStore) expire(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.execs {
		if now.Sub(e.CompletedAt) > s.ttl {
			delete(s.execs, id)
		}
	}
}
