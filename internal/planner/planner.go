// Package planner turns a free-text request into a validated DAG of subtasks.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ShayCichocki/cascade/internal/capability"
	"github.com/ShayCichocki/cascade/internal/llm"
	"github.com/ShayCichocki/cascade/pkg/models"
)

const (
	// DefaultMaxSubtasks caps plan size; oversized plans are truncated.
	DefaultMaxSubtasks = 10

	planTemperature = 0.2
	planMaxTokens   = 2000
)

// plannedSubtask is the JSON structure returned by the model for one subtask.
type plannedSubtask struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	CapabilityKind string   `json:"capability_kind"`
	Query          string   `json:"query"`
	Dependencies   []string `json:"dependencies"`
	OutputVariable string   `json:"output_variable"`
}

// plannedResponse is the JSON structure returned by the model for a full plan.
type plannedResponse struct {
	Goal       string           `json:"goal"`
	Complexity string           `json:"complexity"`
	SubTasks   []plannedSubtask `json:"subtasks"`
}

// Planner decomposes user requests into capability-bound subtasks.
type Planner struct {
	completer   llm.Completer
	registry    *capability.Registry
	maxSubtasks int
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxSubtasks overrides the default plan size cap.
func WithMaxSubtasks(max int) Option {
	return func(p *Planner) {
		if max > 0 {
			p.maxSubtasks = max
		}
	}
}

// New creates a Planner that generates plans restricted to the kinds
// registered in the given registry.
func New(completer llm.Completer, registry *capability.Registry, opts ...Option) *Planner {
	p := &Planner{
		completer:   completer,
		registry:    registry,
		maxSubtasks: DefaultMaxSubtasks,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decompose turns a request into a TaskPlan. It never fails: malformed or
// invalid model output gets one corrective retry, and if that also fails the
// plan degrades to a single converse subtask carrying the request verbatim.
func (p *Planner) Decompose(ctx context.Context, request string) *models.TaskPlan {
	kinds := p.allowedKinds()

	raw, err := p.completer.Complete(ctx, promptMessages(request, kinds), planTemperature, planMaxTokens)
	if err != nil {
		log.Printf("[planner] completion failed, using fallback plan: %v", err)
		return FallbackPlan(request)
	}

	plan, err := p.buildPlan(raw, kinds)
	if err == nil {
		return plan
	}
	log.Printf("[planner] plan rejected (%v), retrying with corrective instruction", err)

	raw, retryErr := p.completer.Complete(ctx, correctiveMessages(request, kinds, err), planTemperature, planMaxTokens)
	if retryErr != nil {
		log.Printf("[planner] corrective completion failed, using fallback plan: %v", retryErr)
		return FallbackPlan(request)
	}

	plan, err = p.buildPlan(raw, kinds)
	if err != nil {
		log.Printf("[planner] corrective plan rejected (%v), using fallback plan", err)
		return FallbackPlan(request)
	}
	return plan
}

// buildPlan runs the full parse-then-validate pipeline on raw model output.
// The returned TaskPlan is constructed only after validation succeeds.
func (p *Planner) buildPlan(raw string, kinds []models.CapabilityKind) (*models.TaskPlan, error) {
	parsed, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	plan := toPlan(parsed)
	if err := ValidatePlan(plan, kinds); err != nil {
		return nil, err
	}

	plan = TruncatePlan(plan, p.maxSubtasks)
	plan = OptimizePlan(plan)
	return plan, nil
}

// allowedKinds returns the kinds a generated plan may use. An empty registry
// still permits converse so the fallback contract holds end to end.
func (p *Planner) allowedKinds() []models.CapabilityKind {
	if p.registry == nil || p.registry.Size() == 0 {
		return []models.CapabilityKind{models.KindConverse}
	}
	return p.registry.Kinds()
}

// ParseResponse extracts and parses the JSON plan object from model output.
func ParseResponse(response string) (*plannedResponse, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 300 {
			preview = preview[:300] + "... (truncated)"
		}
		return nil, fmt.Errorf("no JSON object found in response (got %d chars): %q", len(response), preview)
	}
	jsonStr := response[jsonStart : jsonEnd+1]

	var parsed plannedResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal plan JSON: %w", err)
	}
	if len(parsed.SubTasks) == 0 {
		return nil, fmt.Errorf("plan contains no subtasks")
	}
	return &parsed, nil
}

// toPlan maps the parsed response onto the typed plan, assigning positional
// IDs where the model omitted them.
func toPlan(parsed *plannedResponse) *models.TaskPlan {
	complexity := models.Complexity(strings.ToLower(parsed.Complexity))
	if !complexity.Valid() {
		complexity = models.ComplexityMedium
	}

	plan := &models.TaskPlan{
		Goal:       parsed.Goal,
		Complexity: complexity,
		SubTasks:   make([]models.SubTask, len(parsed.SubTasks)),
	}

	for i, st := range parsed.SubTasks {
		id := strings.TrimSpace(st.ID)
		if id == "" {
			id = fmt.Sprintf("subtask_%d", i+1)
		}
		plan.SubTasks[i] = models.SubTask{
			ID:             id,
			Description:    st.Description,
			Kind:           models.CapabilityKind(strings.ToLower(st.CapabilityKind)),
			Query:          st.Query,
			Dependencies:   st.Dependencies,
			OutputVariable: st.OutputVariable,
		}
	}
	return plan
}

// FallbackPlan builds the deterministic single-subtask plan used whenever
// planning cannot produce a valid decomposition. The original request is
// carried verbatim as a converse query so the pipeline never dead-ends.
func FallbackPlan(request string) *models.TaskPlan {
	return &models.TaskPlan{
		Goal:       request,
		Complexity: models.ComplexityLow,
		SubTasks: []models.SubTask{
			{
				ID:             "subtask_1",
				Description:    "Answer the request directly",
				Kind:           models.KindConverse,
				Query:          request,
				OutputVariable: "subtask_1",
			},
		},
	}
}
