package planner

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// ValidatePlan checks the structural invariants of a plan: unique subtask
// ids, dependencies referencing only earlier subtasks, capability kinds in
// the allowed set, and an acyclic dependency relation.
func ValidatePlan(plan *models.TaskPlan, allowed []models.CapabilityKind) error {
	allowedSet := make(map[models.CapabilityKind]bool, len(allowed))
	for _, kind := range allowed {
		allowedSet[kind] = true
	}

	seen := make(map[string]bool, len(plan.SubTasks))
	for _, st := range plan.SubTasks {
		if st.ID == "" {
			return fmt.Errorf("subtask with empty id")
		}
		if seen[st.ID] {
			return fmt.Errorf("duplicate subtask id %q", st.ID)
		}
		if !st.Kind.Valid() {
			return fmt.Errorf("subtask %s has unknown capability kind %q", st.ID, st.Kind)
		}
		if !allowedSet[st.Kind] {
			return fmt.Errorf("subtask %s uses unregistered capability kind %q", st.ID, st.Kind)
		}
		for _, dep := range st.Dependencies {
			if !seen[dep] {
				return fmt.Errorf("subtask %s depends on %q which is not an earlier subtask", st.ID, dep)
			}
		}
		seen[st.ID] = true
	}

	return validateNoCycles(plan)
}

// validateNoCycles checks for circular dependencies via depth-first search.
func validateNoCycles(plan *models.TaskPlan) error {
	deps := make(map[string][]string, len(plan.SubTasks))
	for _, st := range plan.SubTasks {
		deps[st.ID] = st.Dependencies
	}

	state := make(map[string]int) // 0=unvisited, 1=visiting, 2=visited

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		if state[id] == 2 {
			return nil
		}
		if state[id] == 1 {
			cycleStart := 0
			for i, p := range path {
				if p == id {
					cycleStart = i
					break
				}
			}
			cycle := append(path[cycleStart:], id)
			return fmt.Errorf("circular dependency detected: %s", strings.Join(cycle, " -> "))
		}

		state[id] = 1
		for _, dep := range deps[id] {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		state[id] = 2
		return nil
	}

	for _, st := range plan.SubTasks {
		if state[st.ID] == 0 {
			if err := visit(st.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
