package scheduletrigger

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mocraimer/genflow/internal/workflow"
	"github.com/mocraimer/genflow/pkg/models"
)

type countingExecutor struct {
	calls atomic.Int32
}

func (c *countingExecutor) Execute(ctx context.Context, task *workflow.TaskDefinition, mergedContext map[string]any) (models.AgentResult, error) {
	c.calls.Add(1)
	return models.Success("ok", nil), nil
}

func TestTriggerRejectsInvalidCronSpec(t *testing.T) {
	engine := workflow.NewEngine(&countingExecutor{}, nil, nil)
	tr := New(engine, nil)

	if err := tr.Add(Entry{Name: "bad", CronSpec: "not a cron expr", WorkflowID: "w1"}); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}

func TestTriggerFiresOnCadence(t *testing.T) {
	executor := &countingExecutor{}
	engine := workflow.NewEngine(executor, nil, nil)

	def, err := workflow.NewBuilder("scheduled").
		AddTask(workflow.TaskDefinition{ID: "t1", AgentID: "a1"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := engine.Create(def); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tr := New(engine, nil)
	if err := tr.Add(Entry{Name: "every-second", CronSpec: "@every 1s", WorkflowID: def.ID}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tr.Start()
	defer tr.Stop()

	deadline := time.After(3 * time.Second)
	for executor.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduled workflow never fired within the deadline")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestTriggerStopIsIdempotent(t *testing.T) {
	engine := workflow.NewEngine(&countingExecutor{}, nil, nil)
	tr := New(engine, nil)
	tr.Start()
	tr.Stop()
	tr.Stop()
}
