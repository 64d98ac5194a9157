package planner

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/cascade/pkg/models"
)

var allKinds = models.AllCapabilityKinds

func TestValidatePlan_Valid(t *testing.T) {
	plan := &models.TaskPlan{
		SubTasks: []models.SubTask{
			{ID: "subtask_1", Kind: models.KindSearch, Query: "a"},
			{ID: "subtask_2", Kind: models.KindConverse, Query: "b", Dependencies: []string{"subtask_1"}},
		},
	}
	if err := ValidatePlan(plan, allKinds); err != nil {
		t.Errorf("ValidatePlan returned %v, want nil", err)
	}
}

func TestValidatePlan_DuplicateID(t *testing.T) {
	plan := &models.TaskPlan{
		SubTasks: []models.SubTask{
			{ID: "subtask_1", Kind: models.KindSearch, Query: "a"},
			{ID: "subtask_1", Kind: models.KindConverse, Query: "b"},
		},
	}
	if err := ValidatePlan(plan, allKinds); err == nil {
		t.Error("duplicate subtask id should fail validation")
	}
}

func TestValidatePlan_ForwardReference(t *testing.T) {
	plan := &models.TaskPlan{
		SubTasks: []models.SubTask{
			{ID: "subtask_1", Kind: models.KindSearch, Query: "a", Dependencies: []string{"subtask_2"}},
			{ID: "subtask_2", Kind: models.KindConverse, Query: "b"},
		},
	}
	err := ValidatePlan(plan, allKinds)
	if err == nil {
		t.Fatal("forward dependency reference should fail validation")
	}
	if !strings.Contains(err.Error(), "subtask_2") {
		t.Errorf("error %q should name the offending dependency", err)
	}
}

func TestValidatePlan_UnknownDependency(t *testing.T) {
	plan := &models.TaskPlan{
		SubTasks: []models.SubTask{
			{ID: "subtask_1", Kind: models.KindSearch, Query: "a", Dependencies: []string{"nope"}},
		},
	}
	if err := ValidatePlan(plan, allKinds); err == nil {
		t.Error("unknown dependency should fail validation")
	}
}

func TestValidatePlan_UnknownKind(t *testing.T) {
	plan := &models.TaskPlan{
		SubTasks: []models.SubTask{
			{ID: "subtask_1", Kind: models.CapabilityKind("sorcery"), Query: "a"},
		},
	}
	if err := ValidatePlan(plan, allKinds); err == nil {
		t.Error("unknown capability kind should fail validation")
	}
}

func TestValidatePlan_KindOutsideAllowedSet(t *testing.T) {
	plan := &models.TaskPlan{
		SubTasks: []models.SubTask{
			{ID: "subtask_1", Kind: models.KindFinance, Query: "AAPL"},
		},
	}
	err := ValidatePlan(plan, []models.CapabilityKind{models.KindConverse})
	if err == nil {
		t.Error("kind outside the allowed set should fail validation")
	}
}

func TestValidateNoCycles_ReportsPath(t *testing.T) {
	// Self-dependency is the smallest cycle expressible after the
	// earlier-only check: construct it directly.
	plan := &models.TaskPlan{
		SubTasks: []models.SubTask{
			{ID: "a", Kind: models.KindConverse, Query: "q", Dependencies: []string{"a"}},
		},
	}
	err := validateNoCycles(plan)
	if err == nil {
		t.Fatal("self-cycle should be detected")
	}
	if !strings.Contains(err.Error(), "circular dependency") {
		t.Errorf("error = %q, want circular dependency message", err)
	}
}
