package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/mocraimer/genflow/internal/workflow"
	"github.com/mocraimer/genflow/pkg/models"
)

// Runtime is a registry of live agents that implements workflow.Executor,
// dispatching each task by its AgentID (§4.5: "resolve the agent").
type Runtime struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

func NewRuntime() *Runtime {
	return &Runtime{agents: make(map[string]*Agent)}
}

// Register adds an agent to the runtime, failing if the id is already taken.
func (r *Runtime) Register(a *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, a.ID())
	}
	r.agents[a.ID()] = a
	return nil
}

func (r *Runtime) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

func (r *Runtime) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// Execute implements workflow.Executor. An unresolvable agent id is not a
// Go error: it is a Failed AgentResult carrying a diagnostic message, per
// §4.5's "absent agent -> Failed with a diagnostic result" rule, so the
// scheduler records it the same way it would any other task failure.
func (r *Runtime) Execute(ctx context.Context, task *workflow.TaskDefinition, mergedContext map[string]any) (models.AgentResult, error) {
	a, ok := r.Get(task.AgentID)
	if !ok {
		return models.Failure(fmt.Errorf("%w: %s", ErrUnknownAgent, task.AgentID), map[string]any{
			"task_id":  task.ID,
			"agent_id": task.AgentID,
		}), nil
	}
	return a.Execute(ctx, task.TaskDescription, mergedContext)
}
