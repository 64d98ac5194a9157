// Package models defines the shared data types for plans, tasks, and results.
package models

// CapabilityKind is the closed category of action a sub-task performs.
type CapabilityKind string

const (
	// KindSearch performs a web or index search.
	KindSearch CapabilityKind = "search"
	// KindCompute evaluates an expression or runs a computation.
	KindCompute CapabilityKind = "compute"
	// KindDocumentLookup retrieves passages from a document store.
	KindDocumentLookup CapabilityKind = "document_lookup"
	// KindWeather looks up weather conditions for a location.
	KindWeather CapabilityKind = "weather"
	// KindFinance looks up market or financial data.
	KindFinance CapabilityKind = "finance"
	// KindRouting looks up directions or travel routes.
	KindRouting CapabilityKind = "routing"
	// KindConverse answers directly via the completion model.
	KindConverse CapabilityKind = "converse"
)

// AllCapabilityKinds lists every known capability kind.
var AllCapabilityKinds = []CapabilityKind{
	KindSearch,
	KindCompute,
	KindDocumentLookup,
	KindWeather,
	KindFinance,
	KindRouting,
	KindConverse,
}

// Valid returns true if the kind is a known value.
func (k CapabilityKind) Valid() bool {
	switch k {
	case KindSearch, KindCompute, KindDocumentLookup, KindWeather,
		KindFinance, KindRouting, KindConverse:
		return true
	default:
		return false
	}
}

// Complexity is an advisory estimate of how involved a plan is.
type Complexity string

const (
	// ComplexityLow indicates a trivial request, usually a single subtask.
	ComplexityLow Complexity = "low"
	// ComplexityMedium indicates a request needing a few subtasks.
	ComplexityMedium Complexity = "medium"
	// ComplexityHigh indicates a request needing many coordinated subtasks.
	ComplexityHigh Complexity = "high"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	default:
		return false
	}
}

// SubTask is a single planned unit of work within a TaskPlan.
type SubTask struct {
	// ID is unique within the plan.
	ID string `json:"id"`
	// Description is a human-readable summary of the work.
	Description string `json:"description"`
	// Kind selects the capability that will run this subtask.
	Kind CapabilityKind `json:"capability_kind"`
	// Query is the input for the capability. It may contain {{variable}}
	// placeholders referencing output variables of earlier subtasks.
	Query string `json:"query"`
	// Dependencies lists IDs of subtasks that must complete first.
	Dependencies []string `json:"dependencies,omitempty"`
	// OutputVariable is the name under which this subtask's result becomes
	// substitutable in later queries.
	OutputVariable string `json:"output_variable,omitempty"`
}

// TaskPlan is the validated output of planning: a DAG of subtasks.
type TaskPlan struct {
	// Goal restates the objective of the original request.
	Goal string `json:"goal"`
	// Complexity is an advisory estimate; it does not affect execution.
	Complexity Complexity `json:"complexity"`
	// SubTasks is ordered so that dependencies precede their dependents.
	SubTasks []SubTask `json:"subtasks"`
}

// SubTaskByID returns the subtask with the given ID, or nil if absent.
func (p *TaskPlan) SubTaskByID(id string) *SubTask {
	for i := range p.SubTasks {
		if p.SubTasks[i].ID == id {
			return &p.SubTasks[i]
		}
	}
	return nil
}
