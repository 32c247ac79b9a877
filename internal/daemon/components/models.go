package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/daemon"
	"github.com/miuzhaii/replygate/internal/model"
)

type ModelRouterComponent struct {
	modelsCfg  config.ModelsConfig
	judgeGroup string
	router     *model.DefaultModelRouter
	mu         sync.RWMutex
}

func NewModelRouterComponent(modelsCfg config.ModelsConfig, judgeGroup string) *ModelRouterComponent {
	return &ModelRouterComponent{
		modelsCfg:  modelsCfg,
		judgeGroup: judgeGroup,
	}
}

func (m *ModelRouterComponent) Name() string {
	return "ModelRouter"
}

func (m *ModelRouterComponent) Dependencies() []string {
	return []string{}
}

func (m *ModelRouterComponent) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	router, err := model.NewModelRouter(m.modelsCfg)
	if err != nil {
		return fmt.Errorf("failed to init model router: %w", err)
	}

	// A judge group missing from the registry is not fatal. The engine
	// fails open at judgment time, so the daemon comes up and messages
	// pass through while the operator fixes the config.
	if m.judgeGroup != "" {
		registered := router.ListModels()
		found := false
		for _, name := range registered {
			if name == m.judgeGroup {
				found = true
				break
			}
		}
		if !found {
			slog.Warn("Judge model group not found in registry, judgments will fail open",
				"group", m.judgeGroup, "registered", registered)
		}
	}

	m.router = router
	slog.Info("ModelRouter initialized", "component", m.Name(), "groups", router.ListModels())
	return nil
}

func (m *ModelRouterComponent) Start(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.router == nil {
		return fmt.Errorf("ModelRouter not initialized")
	}
	slog.Info("ModelRouter started", "component", m.Name())
	return nil
}

func (m *ModelRouterComponent) Stop(ctx context.Context) error {
	return nil
}

func (m *ModelRouterComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.router == nil {
		return &daemon.ComponentHealth{
			Name:    m.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	if err := m.router.Health(ctx); err != nil {
		return &daemon.ComponentHealth{
			Name:    m.Name(),
			Healthy: false,
			Error:   err,
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    m.Name(),
		Healthy: true,
	}, nil
}

func (m *ModelRouterComponent) GetRouter() *model.DefaultModelRouter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.router
}
