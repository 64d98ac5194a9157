package planner

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// Visualize renders a plan as an indented subtask list with dependency
// arrows. It is a pure projection for debugging and pre-execution review.
func Visualize(plan *models.TaskPlan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Goal: %s\n", plan.Goal)
	fmt.Fprintf(&b, "Complexity: %s\n", plan.Complexity)
	fmt.Fprintf(&b, "Subtasks (%d):\n", len(plan.SubTasks))

	for _, st := range plan.SubTasks {
		fmt.Fprintf(&b, "  [%s] %s: %q", st.ID, st.Kind, st.Query)
		if len(st.Dependencies) > 0 {
			fmt.Fprintf(&b, "  <- %s", strings.Join(st.Dependencies, ", "))
		}
		b.WriteString("\n")
		if st.Description != "" {
			fmt.Fprintf(&b, "      %s\n", st.Description)
		}
	}

	return b.String()
}
