// Package scheduletrigger fires workflow.Engine.Execute on a cron cadence,
// grounded on the teacher's internal/tasks and internal/cron packages'
// cron.NewParser(SecondOptional|...) convention, collapsed here to the
// stdlib-level robfig/cron.Cron scheduler itself since GenFlow's cadences
// are fire-and-forget workflow runs rather than lease-coordinated jobs.
package scheduletrigger

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mocraimer/genflow/internal/observability"
	"github.com/mocraimer/genflow/internal/workflow"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Entry binds one workflow id to a cron cadence.
type Entry struct {
	Name       string
	CronSpec   string
	WorkflowID string
}

// Trigger owns a cron.Cron scheduler that triggers workflow executions.
type Trigger struct {
	engine *workflow.Engine
	logger *observability.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
}

func New(engine *workflow.Engine, logger *observability.Logger) *Trigger {
	return &Trigger{
		engine: engine,
		logger: logger,
		cron:   cron.New(cron.WithParser(cronParser)),
	}
}

// Add registers a cadence. It must be called before Start.
func (t *Trigger) Add(entry Entry) error {
	if _, err := cronParser.Parse(entry.CronSpec); err != nil {
		return fmt.Errorf("scheduletrigger: invalid cron expression %q: %w", entry.CronSpec, err)
	}
	workflowID := entry.WorkflowID
	name := entry.Name
	_, err := t.cron.AddFunc(entry.CronSpec, func() {
		t.fire(name, workflowID)
	})
	if err != nil {
		return fmt.Errorf("scheduletrigger: register %q: %w", entry.Name, err)
	}
	return nil
}

func (t *Trigger) fire(name, workflowID string) {
	ctx := context.Background()
	if t.logger != nil {
		t.logger.Info(ctx, "scheduled trigger firing", "schedule", name, "workflow_id", workflowID)
	}
	if _, err := t.engine.Execute(ctx, workflowID); err != nil {
		if t.logger != nil {
			t.logger.Error(ctx, "scheduled workflow execution failed", "schedule", name, "workflow_id", workflowID, "error", err)
		}
	}
}

func (t *Trigger) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.cron.Start()
}

func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	<-t.cron.Stop().Done()
}
