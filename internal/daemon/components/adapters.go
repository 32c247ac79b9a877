package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/miuzhaii/replygate/internal/adapter"
	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/daemon"
)

// AdaptersComponent owns the platform listeners. The runtime manager is
// built at Init so the gate pipeline handler exists by then.
type AdaptersComponent struct {
	cfg         config.AdaptersConfig
	gateway     *GatePipelineComponent
	opts        adapter.RuntimeAdapterOptions
	manager     *adapter.RuntimeManager
	initialized bool
	started     bool
}

func NewAdaptersComponent(cfg config.AdaptersConfig, gateway *GatePipelineComponent, opts adapter.RuntimeAdapterOptions) *AdaptersComponent {
	return &AdaptersComponent{cfg: cfg, gateway: gateway, opts: opts}
}

func (a *AdaptersComponent) Name() string {
	return "Adapters"
}

func (a *AdaptersComponent) Dependencies() []string {
	return []string{"GatePipeline"}
}

func (a *AdaptersComponent) Init(ctx context.Context) error {
	if a.gateway == nil {
		return fmt.Errorf("gate pipeline component not provided")
	}

	manager, err := adapter.NewRuntimeManager(a.cfg, a.gateway.Handler(), a.opts)
	if err != nil {
		return fmt.Errorf("failed to build adapter manager: %w", err)
	}

	a.manager = manager
	a.initialized = true
	slog.Info("Adapters initialized", "component", a.Name(), "count", len(manager.InputAdapters()))
	return nil
}

func (a *AdaptersComponent) Start(ctx context.Context) error {
	if !a.initialized {
		return fmt.Errorf("adapters component not initialized")
	}
	a.manager.Start(ctx)
	a.started = true
	slog.Info("Adapters started", "component", a.Name())
	return nil
}

func (a *AdaptersComponent) Stop(ctx context.Context) error {
	if !a.started {
		return nil
	}
	err := a.manager.Stop(ctx)
	a.started = false
	if err != nil {
		return err
	}
	slog.Info("Adapters stopped", "component", a.Name())
	return nil
}

func (a *AdaptersComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if !a.initialized {
		return &daemon.ComponentHealth{Name: a.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if !a.started {
		return &daemon.ComponentHealth{Name: a.Name(), Healthy: false, Error: fmt.Errorf("not started")}, nil
	}
	if err := a.manager.Health(ctx); err != nil {
		return &daemon.ComponentHealth{Name: a.Name(), Healthy: false, Error: err}, nil
	}
	return &daemon.ComponentHealth{Name: a.Name(), Healthy: true}, nil
}

func (a *AdaptersComponent) GetManager() *adapter.RuntimeManager {
	return a.manager
}
