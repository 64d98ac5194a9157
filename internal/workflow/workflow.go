// Package workflow loads task-graph definitions from YAML files and turns
// them into executable graphs.
package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// TaskDef is one task entry in a workflow file.
type TaskDef struct {
	// ID uniquely identifies the task within the workflow.
	ID string `yaml:"id"`
	// Description is a human-readable summary of the task.
	Description string `yaml:"description"`
	// Kind names the capability that executes this task.
	Kind string `yaml:"kind"`
	// Query is the input passed to the capability. It may reference the
	// outputs of other tasks as {{variable}} placeholders.
	Query string `yaml:"query"`
	// DependsOn lists task IDs that must succeed first.
	DependsOn []string `yaml:"depends_on"`
	// Output names the variable this task's result is published under.
	Output string `yaml:"output"`
	// Retries overrides the per-task retry budget when non-nil.
	Retries *int `yaml:"retries"`
	// Timeout is the per-attempt timeout as a duration string ("30s").
	Timeout string `yaml:"timeout"`
}

// Definition is a complete workflow file.
type Definition struct {
	// Name identifies the workflow.
	Name string `yaml:"name"`
	// Mode selects the execution mode; defaults to dag.
	Mode string `yaml:"mode"`
	// MaxParallel bounds concurrent tasks; zero means the default.
	MaxParallel int `yaml:"max_parallel"`
	// Tasks is the ordered task list. Dependencies must refer to tasks
	// that appear earlier in the list.
	Tasks []TaskDef `yaml:"tasks"`
}

// Load reads and validates a workflow definition from path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	return Parse(data)
}

// Parse validates a workflow definition from raw YAML.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing workflow YAML: %w", err)
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("workflow needs a name")
	}
	if len(d.Tasks) == 0 {
		return fmt.Errorf("workflow %q has no tasks", d.Name)
	}
	if d.Mode == "" {
		d.Mode = "dag"
	}

	seen := make(map[string]bool, len(d.Tasks))
	for i, task := range d.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task %d has no id", i+1)
		}
		if seen[task.ID] {
			return fmt.Errorf("duplicate task id %q", task.ID)
		}
		if !models.CapabilityKind(task.Kind).Valid() {
			return fmt.Errorf("task %q: unknown capability kind %q", task.ID, task.Kind)
		}
		if task.Query == "" {
			return fmt.Errorf("task %q has no query", task.ID)
		}
		for _, dep := range task.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("task %q depends on %q, which is not defined earlier in the file", task.ID, dep)
			}
		}
		if task.Timeout != "" {
			if _, err := time.ParseDuration(task.Timeout); err != nil {
				return fmt.Errorf("task %q: invalid timeout %q: %w", task.ID, task.Timeout, err)
			}
		}
		if task.Retries != nil && *task.Retries < 0 {
			return fmt.Errorf("task %q: retries must not be negative", task.ID)
		}
		seen[task.ID] = true
	}
	return nil
}
