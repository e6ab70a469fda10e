package workflow

import "time"

// Builder assembles a Definition fluently, mirroring the task-by-task
// construction style of a hand-written workflow (supplemented feature:
// the original project's WorkflowBuilder).
type Builder struct {
	def *Definition
}

// NewBuilder starts a Builder for a workflow named name.
func NewBuilder(name string) *Builder {
	return &Builder{def: NewDefinition(name, nil)}
}

// AddTask appends a task, applying TaskDefinition defaults, and returns the
// Builder for chaining.
func (b *Builder) AddTask(task TaskDefinition) *Builder {
	task.applyDefaults()
	b.def.Tasks = append(b.def.Tasks, task)
	return b
}

// SetDescription sets the workflow description.
func (b *Builder) SetDescription(desc string) *Builder {
	b.def.Description = desc
	return b
}

// SetGlobalContext sets the context merged into every task's execution
// context at the lowest priority.
func (b *Builder) SetGlobalContext(ctx map[string]any) *Builder {
	b.def.GlobalContext = ctx
	return b
}

// SetMaxParallelTasks overrides the default concurrency bound.
func (b *Builder) SetMaxParallelTasks(n int) *Builder {
	b.def.MaxParallelTasks = n
	return b
}

// SetDefaultTimeout overrides the default per-workflow timeout.
func (b *Builder) SetDefaultTimeout(d time.Duration) *Builder {
	b.def.DefaultTimeout = d
	return b
}

// Build validates and returns the assembled Definition.
func (b *Builder) Build() (*Definition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return b.def, nil
}
