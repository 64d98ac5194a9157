package planner

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/cascade/internal/llm"
	"github.com/ShayCichocki/cascade/pkg/models"
)

// decompositionPrompt is the prompt template for request decomposition.
// The %s verbs are: allowed capability kinds, user request.
const decompositionPrompt = `Break this user request into the smallest set of subtasks that answers it. Each subtask is executed by exactly one capability.

Allowed capability kinds (use ONLY these):
%s

User request:
%s

Return ONLY a JSON object with this exact structure (no other text):
{
  "goal": "Restated objective",
  "complexity": "low|medium|high",
  "subtasks": [
    {
      "id": "subtask_1",
      "description": "What this subtask does",
      "capability_kind": "one of the allowed kinds",
      "query": "The input for the capability",
      "dependencies": [],
      "output_variable": "subtask_1"
    }
  ]
}

Guidelines:
- Number ids sequentially: subtask_1, subtask_2, ...
- dependencies may only reference ids of EARLIER subtasks
- To use an earlier subtask's output in a query, reference its output_variable as {{subtask_1}} and list that subtask in dependencies
- Keep subtasks independent when possible so they can run in parallel
- Use converse for anything that only needs the model itself
- Use empty array [] for dependencies if there are none`

// correctiveSuffix is appended when the first response could not be used.
const correctiveSuffix = `

Your previous response was rejected: %s

Respond again with ONLY the JSON object, no prose, no code fences.`

// promptMessages builds the completion messages for an initial planning call.
func promptMessages(request string, kinds []models.CapabilityKind) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a planning assistant that decomposes requests into executable subtasks."},
		{Role: llm.RoleUser, Content: fmt.Sprintf(decompositionPrompt, kindList(kinds), request)},
	}
}

// correctiveMessages builds the retry messages after a rejected response.
func correctiveMessages(request string, kinds []models.CapabilityKind, reason error) []llm.Message {
	prompt := fmt.Sprintf(decompositionPrompt, kindList(kinds), request) +
		fmt.Sprintf(correctiveSuffix, reason)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a planning assistant that decomposes requests into executable subtasks."},
		{Role: llm.RoleUser, Content: prompt},
	}
}

// kindList formats the allowed kinds as a bulleted list for the prompt.
func kindList(kinds []models.CapabilityKind) string {
	var b strings.Builder
	for _, kind := range kinds {
		fmt.Fprintf(&b, "- %s\n", kind)
	}
	return strings.TrimRight(b.String(), "\n")
}
