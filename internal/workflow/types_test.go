package workflow

import "testing"

func TestValidateDuplicateTaskID(t *testing.T) {
	def := NewDefinition("dup", []TaskDefinition{
		{ID: "a"},
		{ID: "a"},
	})
	if err := def.Validate(); err == nil {
		t.Fatal("expected error for duplicate task id")
	}
}

func TestValidateUnknownDependency(t *testing.T) {
	def := NewDefinition("missing-dep", []TaskDefinition{
		{ID: "a", DependsOn: []string{"b"}},
	})
	if err := def.Validate(); err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestValidateCycle(t *testing.T) {
	def := NewDefinition("cycle", []TaskDefinition{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"c"}},
		{ID: "c", DependsOn: []string{"a"}},
	})
	if err := def.Validate(); err == nil {
		t.Fatal("expected error for dependency cycle")
	}
}

func TestValidateAcceptsDiamond(t *testing.T) {
	def := NewDefinition("diamond", []TaskDefinition{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"a"}},
		{ID: "d", DependsOn: []string{"b", "c"}},
	})
	if err := def.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTaskDefaults(t *testing.T) {
	def := NewDefinition("defaults", []TaskDefinition{{ID: "a"}})
	task := def.Task("a")
	if task.RetryCount != DefaultRetryCount {
		t.Errorf("RetryCount = %d, want %d", task.RetryCount, DefaultRetryCount)
	}
	if task.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", task.Timeout, DefaultTimeout)
	}
	if def.MaxParallelTasks != DefaultMaxParallelTasks {
		t.Errorf("MaxParallelTasks = %d, want %d", def.MaxParallelTasks, DefaultMaxParallelTasks)
	}
}

func TestMergedContextPriority(t *testing.T) {
	def := NewDefinition("merge", []TaskDefinition{
		{ID: "a", Context: map[string]any{"k": "task", "task_only": true}},
	})
	def.GlobalContext = map[string]any{"k": "global", "global_only": true}
	exec := &Execution{
		Definition:       def,
		ExecutionContext: map[string]any{"k": "execution"},
	}
	merged := exec.mergedContext(def.Task("a"))
	if merged["k"] != "execution" {
		t.Errorf("k = %v, want execution (highest priority)", merged["k"])
	}
	if merged["task_only"] != true || merged["global_only"] != true {
		t.Errorf("expected lower-priority keys preserved: %+v", merged)
	}
}
