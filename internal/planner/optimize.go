package planner

import (
	"log"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// TruncatePlan enforces the plan size cap. Oversized plans are cut rather
// than rejected: the first max subtasks survive, and any dependency edge
// pointing at a dropped subtask is removed so the remainder stays valid.
func TruncatePlan(plan *models.TaskPlan, max int) *models.TaskPlan {
	if max <= 0 || len(plan.SubTasks) <= max {
		return plan
	}

	log.Printf("[planner] plan has %d subtasks, truncating to %d", len(plan.SubTasks), max)

	kept := plan.SubTasks[:max]
	surviving := make(map[string]bool, len(kept))
	for _, st := range kept {
		surviving[st.ID] = true
	}

	for i := range kept {
		var deps []string
		for _, dep := range kept[i].Dependencies {
			if surviving[dep] {
				deps = append(deps, dep)
			}
		}
		kept[i].Dependencies = deps
	}

	plan.SubTasks = kept
	return plan
}

// OptimizePlan merges subtasks with identical capability kind and query
// (first occurrence wins, dependency edges re-pointed to the survivor) and
// assigns default output variable names where the model omitted them.
func OptimizePlan(plan *models.TaskPlan) *models.TaskPlan {
	type dupKey struct {
		kind  models.CapabilityKind
		query string
	}

	survivorByKey := make(map[dupKey]string)
	replaced := make(map[string]string) // dropped id -> surviving id
	var merged []models.SubTask

	for _, st := range plan.SubTasks {
		key := dupKey{kind: st.Kind, query: st.Query}
		if survivor, ok := survivorByKey[key]; ok {
			replaced[st.ID] = survivor
			log.Printf("[planner] merged duplicate subtask %s into %s (%s: %q)", st.ID, survivor, st.Kind, st.Query)
			continue
		}
		survivorByKey[key] = st.ID
		merged = append(merged, st)
	}

	for i := range merged {
		var deps []string
		depSeen := make(map[string]bool)
		for _, dep := range merged[i].Dependencies {
			if survivor, ok := replaced[dep]; ok {
				dep = survivor
			}
			// A merged dependency can collapse onto the task itself.
			if dep == merged[i].ID || depSeen[dep] {
				continue
			}
			depSeen[dep] = true
			deps = append(deps, dep)
		}
		merged[i].Dependencies = deps

		// Default output variables follow the subtask_<n> id convention so
		// {{subtask_<n>}} placeholders resolve without the model naming them.
		if merged[i].OutputVariable == "" {
			merged[i].OutputVariable = merged[i].ID
		}
	}

	plan.SubTasks = merged
	return plan
}
