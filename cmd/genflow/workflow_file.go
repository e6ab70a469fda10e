package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mocraimer/genflow/internal/workflow"
)

// workflowTaskFile is the on-disk, yaml-tagged shape for one
// workflow.TaskDefinition. A separate type from workflow.TaskDefinition
// keeps the file format human-typeable (snake_case keys, a duration
// string) without forcing yaml tags onto the scheduler's core type.
type workflowTaskFile struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	AgentID     string         `yaml:"agent_id"`
	Description string         `yaml:"description"`
	DependsOn   []string       `yaml:"depends_on"`
	RetryCount  int            `yaml:"retry_count"`
	Timeout     string         `yaml:"timeout"`
	Context     map[string]any `yaml:"context"`
}

type workflowFile struct {
	Name             string              `yaml:"name"`
	Description      string              `yaml:"description"`
	Tasks            []workflowTaskFile  `yaml:"tasks"`
	GlobalContext    map[string]any      `yaml:"global_context"`
	MaxParallelTasks int                 `yaml:"max_parallel_tasks"`
	DefaultTimeout   string              `yaml:"default_timeout"`
}

func loadWorkflowDefinition(path string) (*workflow.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file %s: %w", path, err)
	}

	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow file %s: %w", path, err)
	}

	builder := workflow.NewBuilder(wf.Name).SetDescription(wf.Description)
	if wf.GlobalContext != nil {
		builder = builder.SetGlobalContext(wf.GlobalContext)
	}
	if wf.MaxParallelTasks > 0 {
		builder = builder.SetMaxParallelTasks(wf.MaxParallelTasks)
	}
	if wf.DefaultTimeout != "" {
		d, err := time.ParseDuration(wf.DefaultTimeout)
		if err != nil {
			return nil, fmt.Errorf("workflow file %s: invalid default_timeout: %w", path, err)
		}
		builder = builder.SetDefaultTimeout(d)
	}

	for _, tf := range wf.Tasks {
		task := workflow.TaskDefinition{
			ID:              tf.ID,
			Name:            tf.Name,
			AgentID:         tf.AgentID,
			TaskDescription: tf.Description,
			DependsOn:       tf.DependsOn,
			RetryCount:      tf.RetryCount,
			Context:         tf.Context,
		}
		if tf.Timeout != "" {
			d, err := time.ParseDuration(tf.Timeout)
			if err != nil {
				return nil, fmt.Errorf("workflow file %s: task %q: invalid timeout: %w", path, tf.ID, err)
			}
			task.Timeout = d
		}
		builder = builder.AddTask(task)
	}

	def, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("workflow file %s: %w", path, err)
	}
	return def, nil
}
