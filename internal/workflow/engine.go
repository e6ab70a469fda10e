package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mocraimer/genflow/internal/observability"
	"github.com/mocraimer/genflow/pkg/models"
)

// Executor runs one task attempt to completion or to ctx cancellation. It is
// implemented by the agent runtime; the engine never talks to an agent
// directly.
type Executor interface {
	Execute(ctx context.Context, task *TaskDefinition, mergedContext map[string]any) (models.AgentResult, error)
}

// NotFoundError reports a reference to a workflow id the Engine does not
// know about.
type NotFoundError struct {
	WorkflowID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("workflow %s: not found", e.WorkflowID)
}

// Engine is the DAG scheduler: it validates workflow definitions, computes
// ready sets, and drives bounded-parallel task execution to completion
// (§4 Workflow Scheduler).
type Engine struct {
	executor Executor
	logger   *observability.Logger
	metrics  *observability.Metrics

	mu         sync.Mutex
	defs       map[string]*Definition
	executions map[string]*Execution
	cancels    map[string]context.CancelFunc
}

// NewEngine constructs an Engine that dispatches task attempts through
// executor.
func NewEngine(executor Executor, logger *observability.Logger, metrics *observability.Metrics) *Engine {
	if logger == nil {
		logger = observability.Default()
	}
	return &Engine{
		executor:   executor,
		logger:     logger,
		metrics:    metrics,
		defs:       make(map[string]*Definition),
		executions: make(map[string]*Execution),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Create validates def and registers it for execution.
func (e *Engine) Create(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defs[def.ID] = def
	return nil
}

// Status returns the current Execution for workflowID, or a NotFoundError
// if it has never been executed.
func (e *Engine) Status(workflowID string) (*Execution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.executions[workflowID]
	if !ok {
		return nil, &NotFoundError{WorkflowID: workflowID}
	}
	return exec, nil
}

// Cancel marks a running workflow execution cancelled. It does not preempt
// tasks already dispatched to the executor; they run to completion or
// timeout, but no further tasks are started (§4.4 Cancellation).
func (e *Engine) Cancel(workflowID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.cancels[workflowID]
	if !ok {
		return &NotFoundError{WorkflowID: workflowID}
	}
	cancel()
	return nil
}

type taskDone struct {
	taskID string
}

// Execute runs workflowID's task DAG to completion: it repeatedly computes
// the ready set (tasks whose dependencies have all succeeded), dispatches
// each ready task under a bound of MaxParallelTasks concurrent attempts, and
// waits for at least one attempt to finish before recomputing the ready set.
// A task whose dependency failed is never dispatched and remains Pending
// forever (§8 scenario 3): the loop exits through the no-ready-set path once
// nothing is ready and nothing is running.
func (e *Engine) Execute(ctx context.Context, workflowID string) (*Execution, error) {
	e.mu.Lock()
	def, ok := e.defs[workflowID]
	if !ok {
		e.mu.Unlock()
		return nil, &NotFoundError{WorkflowID: workflowID}
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancels[workflowID] = cancel
	now := time.Now()
	exec := &Execution{
		WorkflowID:       workflowID,
		Definition:       def,
		Status:           StatusRunning,
		StartTime:        &now,
		TaskExecutions:   make(map[string]*TaskExecution),
		ExecutionContext: make(map[string]any),
	}
	for _, t := range def.Tasks {
		exec.TaskExecutions[t.ID] = &TaskExecution{TaskID: t.ID, Status: TaskPending}
	}
	e.executions[workflowID] = exec
	e.mu.Unlock()

	defer cancel()

	maxParallel := def.MaxParallelTasks
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallelTasks
	}
	sem := make(chan struct{}, maxParallel)
	results := make(chan taskDone, len(def.Tasks))

	dispatched := make(map[string]bool, len(def.Tasks))
	running := 0

	terminal := func(status TaskStatus) bool {
		return status == TaskSuccess || status == TaskFailed || status == TaskSkipped
	}

	allTerminal := func() bool {
		for _, t := range def.Tasks {
			if !terminal(exec.TaskExecution(t.ID).Status) {
				return false
			}
		}
		return true
	}

	cancelled := false
loop:
	for !allTerminal() {
		if runCtx.Err() != nil {
			cancelled = true
			break
		}

		progressed := false
		for _, t := range def.Tasks {
			task := t
			te := exec.TaskExecution(task.ID)
			if dispatched[task.ID] || terminal(te.Status) {
				continue
			}
			if !dependenciesSatisfied(exec, &task) {
				continue
			}
			dispatched[task.ID] = true
			running++
			progressed = true
			go e.runTask(runCtx, exec, &task, sem, results)
		}

		if allTerminal() {
			break
		}
		if !progressed && running == 0 {
			// Nothing ready, nothing running, not all terminal: every
			// remaining task is blocked on a failed dependency and stays
			// Pending forever (§8 boundary property).
			break
		}
		if running > 0 {
			select {
			case <-results:
				running--
			case <-runCtx.Done():
				cancelled = true
				break loop
			}
		}
	}

	if cancelled {
		// Wait for every already-dispatched task to report back before
		// touching its TaskExecution again: runTask still owns those
		// fields until it sends on results, and cancellation never
		// preempts work in flight.
		for running > 0 {
			<-results
			running--
		}
	}

	endTime := time.Now()
	exec.EndTime = &endTime
	exec.Status = e.finalStatus(runCtx, exec)
	return exec, nil
}

func (e *Engine) finalStatus(runCtx context.Context, exec *Execution) Status {
	if errors.Is(runCtx.Err(), context.Canceled) {
		return StatusCancelled
	}
	for _, t := range exec.Definition.Tasks {
		if exec.TaskExecution(t.ID).Status == TaskFailed {
			return StatusFailed
		}
	}
	return StatusSuccess
}

// dependenciesSatisfied reports whether every one of task's dependencies
// has succeeded. A dependency that failed (or is still pending) simply
// leaves the task not-ready rather than marking it blocked: a task whose
// dependency failed stays Pending forever rather than being skipped (§8
// scenario 3, §8 boundary property).
func dependenciesSatisfied(exec *Execution, task *TaskDefinition) bool {
	for _, dep := range task.DependsOn {
		if exec.TaskExecution(dep).Status != TaskSuccess {
			return false
		}
	}
	return true
}

// runTask executes one task under sem, retrying up to task.RetryCount times
// while holding the same semaphore slot. A timeout produces a failed
// terminal result with no retry (§4.5 per-task execution).
func (e *Engine) runTask(ctx context.Context, exec *Execution, task *TaskDefinition, sem chan struct{}, results chan<- taskDone) {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		results <- taskDone{taskID: task.ID}
		return
	}
	defer func() { <-sem }()

	te := exec.TaskExecution(task.ID)
	te.Status = TaskRunning
	start := time.Now()
	te.StartTime = &start

	mergedCtx := exec.mergedContext(task)

	// attempts counts completed failed attempts, per §3's TaskExecution
	// definition; it is incremented only when an attempt fails and is
	// about to be retried, not on the attempt that finally succeeds or
	// the one that exhausts the retry budget.
	attempts := 0
	for {
		// The attempt is detached from ctx's cancellation so Cancel never
		// preempts it; task.Timeout is its only deadline.
		attemptCtx, attemptCancel := context.WithTimeout(context.WithoutCancel(ctx), task.Timeout)
		result, err := e.executor.Execute(attemptCtx, task, mergedCtx)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		attemptCancel()

		if e.metrics != nil {
			outcome := "success"
			if err != nil || !result.Success {
				outcome = "failure"
			}
			e.metrics.TaskAttempts.WithLabelValues(outcome).Inc()
		}

		if err == nil && result.Success {
			te.Status = TaskSuccess
			te.Attempts = attempts
			te.Result = &result
			break
		}

		if timedOut {
			te.Status = TaskFailed
			te.Attempts = attempts
			te.Error = fmt.Sprintf("task %s timed out after %s", task.ID, task.Timeout)
			te.Result = &result
			break
		}

		failMsg := result.Error
		if err != nil {
			failMsg = err.Error()
		}
		if attempts < task.RetryCount && ctx.Err() == nil {
			attempts++
			te.Attempts = attempts
			te.Status = TaskRetry
			te.Error = failMsg
			continue
		}
		te.Status = TaskFailed
		te.Attempts = attempts
		te.Error = failMsg
		te.Result = &result
		break
	}

	end := time.Now()
	te.EndTime = &end
	results <- taskDone{taskID: task.ID}
}
