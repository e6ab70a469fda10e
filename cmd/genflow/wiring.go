package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mocraimer/genflow/internal/agent"
	"github.com/mocraimer/genflow/internal/bus"
	"github.com/mocraimer/genflow/internal/config"
	"github.com/mocraimer/genflow/internal/llmprovider"
	"github.com/mocraimer/genflow/internal/mcp"
	"github.com/mocraimer/genflow/internal/observability"
	"github.com/mocraimer/genflow/internal/scheduletrigger"
	"github.com/mocraimer/genflow/internal/workflow"
)

// app bundles the wired-together engines a CLI command operates on,
// assembled the way the teacher's cmd/nexus `runServe` wires its gateway.
type app struct {
	cfg       *config.Config
	logger    *observability.Logger
	metrics   *observability.Metrics
	providers *llmprovider.Registry
	pool      *mcp.Pool
	runtime   *agent.Runtime
	bus       *bus.Bus
	engine    *workflow.Engine
	trigger   *scheduletrigger.Trigger
}

func buildApp(ctx context.Context, configPath string, debug bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if debug {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Observability.LogFormat,
	})

	metrics := observability.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	providers := llmprovider.NewRegistry()
	for _, p := range cfg.Providers {
		bound, err := buildProvider(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		providers.Register(p.Name, bound)
	}

	pool := mcp.NewPool(logger, metrics)
	factory := agent.NewFactory(providers, pool, logger)

	runtime := agent.NewRuntime()
	for _, ac := range cfg.Agents {
		a, err := factory.Create(ac.ToAgentConfig())
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", ac.ID, err)
		}
		if err := a.Start(ctx); err != nil {
			return nil, fmt.Errorf("start agent %q: %w", ac.ID, err)
		}
		if err := runtime.Register(a); err != nil {
			return nil, fmt.Errorf("register agent %q: %w", ac.ID, err)
		}
	}

	msgBus := bus.NewBus(cfg.Bus.QueueCapacity, logger, metrics)
	msgBus.Start(ctx)

	engine := workflow.NewEngine(runtime, logger, metrics)

	trigger := scheduletrigger.New(engine, logger)
	for _, sc := range cfg.Schedules {
		def, err := loadWorkflowDefinition(sc.WorkflowFile)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
		if err := engine.Create(def); err != nil {
			return nil, fmt.Errorf("schedule %q: create workflow: %w", sc.Name, err)
		}
		if err := trigger.Add(scheduletrigger.Entry{Name: sc.Name, CronSpec: sc.CronSpec, WorkflowID: def.ID}); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		providers: providers,
		pool:      pool,
		runtime:   runtime,
		bus:       msgBus,
		engine:    engine,
		trigger:   trigger,
	}, nil
}

func (a *app) shutdown() {
	a.trigger.Stop()
	a.bus.Stop()
	a.pool.Shutdown()
}

func buildProvider(ctx context.Context, p config.ProviderConfig) (llmprovider.Provider, error) {
	switch p.Kind {
	case "anthropic":
		return llmprovider.NewAnthropicProvider(llmprovider.AnthropicConfig{
			APIKey:       p.APIKey,
			DefaultModel: p.DefaultModel,
		}), nil
	case "openai":
		return llmprovider.NewOpenAIProvider(llmprovider.OpenAIConfig{
			APIKey:       p.APIKey,
			DefaultModel: p.DefaultModel,
		}), nil
	case "bedrock":
		return llmprovider.NewBedrockProvider(ctx, llmprovider.BedrockConfig{
			Region:       p.Region,
			DefaultModel: p.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unsupported provider kind %q", p.Kind)
	}
}
