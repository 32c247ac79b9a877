package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/daemon"
	"github.com/miuzhaii/replygate/internal/history"
)

type HistoryStoreComponent struct {
	workspaceID       string
	workspaceRootPath string
	storeCfg          *config.StoreConfig
	store             *history.Store
	initialized       bool
	started           bool
	mu                sync.RWMutex
	startTime         time.Time
}

func NewHistoryStoreComponent(workspaceID string, workspaceRootPath string, storeCfg *config.StoreConfig) *HistoryStoreComponent {
	return &HistoryStoreComponent{
		workspaceID:       workspaceID,
		workspaceRootPath: workspaceRootPath,
		storeCfg:          storeCfg,
		initialized:       false,
		started:           false,
	}
}

func (h *HistoryStoreComponent) Name() string {
	return "HistoryStore"
}

func (h *HistoryStoreComponent) Dependencies() []string {
	return []string{}
}

func (h *HistoryStoreComponent) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("HistoryStore init cancelled: %w", ctx.Err())
	default:
	}

	lockTimeoutValue := ""
	lockRetryValue := ""
	lockMaxRetry := 0
	inboxSize := 0
	transcriptRotateMaxBytes := int64(0)
	if h.storeCfg != nil {
		lockTimeoutValue = h.storeCfg.LockTimeout
		lockRetryValue = h.storeCfg.LockRetry
		lockMaxRetry = h.storeCfg.LockMaxRetry
		inboxSize = h.storeCfg.InboxSize
		transcriptRotateMaxBytes = h.storeCfg.TranscriptRotateMaxBytes
	}

	lockTimeout, err := config.DurationOrDefault(lockTimeoutValue, config.DefaultStoreLockTimeout)
	if err != nil {
		return fmt.Errorf("parse store lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(lockRetryValue, config.DefaultStoreLockRetry)
	if err != nil {
		return fmt.Errorf("parse store lock retry: %w", err)
	}
	if lockMaxRetry <= 0 {
		lockMaxRetry = config.DefaultStoreLockMaxRetry
	}
	if inboxSize <= 0 {
		inboxSize = config.DefaultStoreInboxSize
	}
	if transcriptRotateMaxBytes <= 0 {
		transcriptRotateMaxBytes = config.DefaultStoreTranscriptRotateMaxBytes
	}

	store, err := history.NewStore(h.workspaceID, h.workspaceRootPath, history.RuntimeConfig{
		LockTimeout:              lockTimeout,
		LockRetry:                lockRetry,
		LockMaxRetry:             lockMaxRetry,
		InboxSize:                inboxSize,
		TranscriptRotateMaxBytes: transcriptRotateMaxBytes,
	})
	if err != nil {
		if strings.Contains(err.Error(), "is locked by another instance") {
			return fmt.Errorf("workspace %s is locked by another instance: %w", h.workspaceID, err)
		}
		return fmt.Errorf("failed to init history store: %w", err)
	}

	h.store = store
	h.initialized = true
	slog.Info("HistoryStore initialized", "component", h.Name(), "workspace", h.workspaceID)
	return nil
}

func (h *HistoryStoreComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return fmt.Errorf("HistoryStore not initialized")
	}

	h.store.Start()
	h.started = true
	h.startTime = time.Now()
	slog.Info("HistoryStore started", "component", h.Name())
	return nil
}

func (h *HistoryStoreComponent) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		slog.Info("HistoryStore not started, skipping stop", "component", h.Name())
		return nil
	}

	slog.Info("Stopping HistoryStore...", "component", h.Name())
	h.store.Stop()
	h.started = false
	slog.Info("HistoryStore stopped", "component", h.Name())
	return nil
}

func (h *HistoryStoreComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.initialized {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	if !h.started {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not started"),
		}, nil
	}

	if !h.store.IsLockHeld() {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("lock not held"),
		}, nil
	}

	if !h.store.IsRunning() {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("loop not running"),
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    h.Name(),
		Healthy: true,
		Error:   nil,
	}, nil
}

func (h *HistoryStoreComponent) GetStore() *history.Store {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.store
}
