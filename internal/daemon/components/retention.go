package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/daemon"
	"github.com/miuzhaii/replygate/internal/retention"
)

type RetentionSweeperComponent struct {
	cfg         *config.RetentionConfig
	historyComp *HistoryStoreComponent
	sweeper     *retention.Sweeper
	mu          sync.RWMutex
}

func NewRetentionSweeperComponent(cfg *config.RetentionConfig, historyComp *HistoryStoreComponent) *RetentionSweeperComponent {
	return &RetentionSweeperComponent{
		cfg:         cfg,
		historyComp: historyComp,
	}
}

func (r *RetentionSweeperComponent) Name() string {
	return "RetentionSweeper"
}

func (r *RetentionSweeperComponent) Dependencies() []string {
	return []string{"HistoryStore"}
}

func (r *RetentionSweeperComponent) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.historyComp == nil {
		return fmt.Errorf("history store component not provided")
	}
	store := r.historyComp.GetStore()
	if store == nil {
		return fmt.Errorf("history store not initialized")
	}

	schedule := r.cfg.Schedule
	if schedule == "" {
		schedule = config.DefaultRetentionSchedule
	}
	maxAge, err := config.DurationOrDefault(r.cfg.MaxAge, config.DefaultRetentionMaxAge)
	if err != nil {
		return fmt.Errorf("parse retention max age: %w", err)
	}

	sweeper, err := retention.NewSweeper(store, retention.Options{
		Schedule: schedule,
		MaxAge:   maxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to init retention sweeper: %w", err)
	}

	r.sweeper = sweeper
	slog.Info("RetentionSweeper initialized", "component", r.Name(), "schedule", schedule, "max_age", maxAge)
	return nil
}

func (r *RetentionSweeperComponent) Start(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.sweeper == nil {
		return fmt.Errorf("RetentionSweeper not initialized")
	}
	return r.sweeper.Start(ctx)
}

func (r *RetentionSweeperComponent) Stop(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.sweeper == nil {
		return nil
	}
	return r.sweeper.Stop(ctx)
}

func (r *RetentionSweeperComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.sweeper == nil {
		return &daemon.ComponentHealth{
			Name:    r.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	if err := r.sweeper.Health(ctx); err != nil {
		return &daemon.ComponentHealth{
			Name:    r.Name(),
			Healthy: false,
			Error:   err,
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    r.Name(),
		Healthy: true,
	}, nil
}

func (r *RetentionSweeperComponent) GetSweeper() *retention.Sweeper {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sweeper
}
