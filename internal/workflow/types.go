// Package workflow implements the DAG scheduler: workflow definitions,
// per-run execution state, dependency validation, and the bounded-parallel
// dispatch loop that drives tasks to completion.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mocraimer/genflow/pkg/models"
)

// TaskStatus is the lifecycle state of one TaskExecution.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
	TaskSkipped TaskStatus = "skipped"
	TaskRetry   TaskStatus = "retry"
)

// Status is the lifecycle state of one WorkflowExecution.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// TaskDefinition describes one node in a workflow DAG (§3 TaskDefinition).
type TaskDefinition struct {
	ID              string
	Name            string
	AgentID         string
	TaskDescription string
	DependsOn       []string
	RetryCount      int
	Timeout         time.Duration
	Context         map[string]any
}

// DefaultRetryCount and DefaultTimeout are applied by Builder.AddTask and by
// NewDefinition to any TaskDefinition field left at its zero value.
const (
	DefaultRetryCount = 3
	DefaultTimeout    = 300 * time.Second
)

func (t *TaskDefinition) applyDefaults() {
	if t.RetryCount == 0 {
		t.RetryCount = DefaultRetryCount
	}
	if t.Timeout == 0 {
		t.Timeout = DefaultTimeout
	}
	if t.Name == "" {
		t.Name = t.ID
	}
}

// Definition describes a complete, validated workflow DAG (§3
// WorkflowDefinition).
type Definition struct {
	ID                string
	Name              string
	Description       string
	Tasks             []TaskDefinition
	GlobalContext     map[string]any
	MaxParallelTasks  int
	DefaultTimeout    time.Duration
}

const (
	DefaultMaxParallelTasks = 5
	DefaultWorkflowTimeout  = 600 * time.Second
)

// NewDefinition builds a Definition applying the documented defaults. It
// does not validate dependencies; call Validate (or Engine.Create, which
// validates internally) before executing it.
func NewDefinition(name string, tasks []TaskDefinition) *Definition {
	d := &Definition{
		ID:               uuid.NewString(),
		Name:             name,
		Tasks:            tasks,
		MaxParallelTasks: DefaultMaxParallelTasks,
		DefaultTimeout:   DefaultWorkflowTimeout,
	}
	for i := range d.Tasks {
		d.Tasks[i].applyDefaults()
	}
	return d
}

// Task returns the task with the given id, or nil.
func (d *Definition) Task(id string) *TaskDefinition {
	for i := range d.Tasks {
		if d.Tasks[i].ID == id {
			return &d.Tasks[i]
		}
	}
	return nil
}

// ValidationError reports a workflow definition rejected at create time
// (§7 ValidationError).
type ValidationError struct {
	WorkflowID string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %s: invalid definition: %s", e.WorkflowID, e.Reason)
}

// Validate checks task-id uniqueness, dependency resolution, and acyclicity
// (§3 invariants). It is deterministic: the same Definition always yields
// the same verdict.
func (d *Definition) Validate() error {
	seen := make(map[string]bool, len(d.Tasks))
	for _, t := range d.Tasks {
		if t.ID == "" {
			return &ValidationError{WorkflowID: d.ID, Reason: "task id must not be empty"}
		}
		if seen[t.ID] {
			return &ValidationError{WorkflowID: d.ID, Reason: fmt.Sprintf("duplicate task id %q", t.ID)}
		}
		seen[t.ID] = true
	}

	for _, t := range d.Tasks {
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				return &ValidationError{
					WorkflowID: d.ID,
					Reason:     fmt.Sprintf("task %q depends on unknown task %q", t.ID, dep),
				}
			}
		}
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS recursion stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(d.Tasks))
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		task := d.Task(id)
		for _, dep := range task.DependsOn {
			switch color[dep] {
			case gray:
				return true // back edge: cycle
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for _, t := range d.Tasks {
		if color[t.ID] == white {
			if visit(t.ID) {
				return &ValidationError{WorkflowID: d.ID, Reason: "dependency cycle detected"}
			}
		}
	}

	return nil
}

// TaskExecution is per-run state for one task (§3 TaskExecution).
type TaskExecution struct {
	TaskID    string
	Status    TaskStatus
	StartTime *time.Time
	EndTime   *time.Time
	Attempts  int
	Result    *models.AgentResult
	Error     string
}

// Execution is per-run state for one workflow (§3 WorkflowExecution).
type Execution struct {
	WorkflowID       string
	Definition       *Definition
	Status           Status
	StartTime        *time.Time
	EndTime          *time.Time
	TaskExecutions   map[string]*TaskExecution
	ExecutionContext map[string]any
}

// TaskExecution returns the execution state for taskID, or nil.
func (e *Execution) TaskExecution(taskID string) *TaskExecution {
	return e.TaskExecutions[taskID]
}

// mergedContext merges workflow.global_context < task.context <
// execution_context, in that priority order (§4.5 per-task execution).
func (e *Execution) mergedContext(task *TaskDefinition) map[string]any {
	merged := make(map[string]any)
	for k, v := range e.Definition.GlobalContext {
		merged[k] = v
	}
	for k, v := range task.Context {
		merged[k] = v
	}
	for k, v := range e.ExecutionContext {
		merged[k] = v
	}
	return merged
}
