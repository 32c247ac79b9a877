package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/miuzhaii/replygate/internal/adapter"
	"github.com/miuzhaii/replygate/internal/cache"
	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/errors"
	"github.com/miuzhaii/replygate/internal/gate"
	"github.com/miuzhaii/replygate/internal/history"
	"github.com/miuzhaii/replygate/internal/judge"
	"github.com/miuzhaii/replygate/internal/merge"
	"github.com/miuzhaii/replygate/internal/message"
	"github.com/miuzhaii/replygate/internal/model"
	"github.com/miuzhaii/replygate/internal/notify"
	"github.com/miuzhaii/replygate/internal/pipeline"
	"github.com/miuzhaii/replygate/internal/scope"
)

// RuntimeComponents is the fully wired decision chain for foreground use.
// Emissions flow into Notifier, a channel notifier the REPL drains; the
// daemon builds the same chain through its component lifecycle instead.
type RuntimeComponents struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Config      *config.Config
	WorkspaceID string

	Store       *history.Store
	Router      *model.DefaultModelRouter
	Engine      *judge.Engine
	Gate        *gate.Gate
	Coordinator *merge.Coordinator
	Pipeline    *pipeline.Pipeline
	Notifier    *notify.ChannelNotifier
	AdapterMgr  *adapter.RuntimeManager
}

func NewRuntimeComponents(ctx context.Context, cfg *config.Config, workspaceID string) (*RuntimeComponents, error) {
	cancel := func() {}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel = context.WithCancel(ctx)

	components := &RuntimeComponents{
		Ctx:         ctx,
		Cancel:      cancel,
		Config:      cfg,
		WorkspaceID: workspaceID,
	}

	messageHandler := func(msgCtx context.Context, msg message.Message) error {
		if components.Pipeline == nil {
			return fmt.Errorf("pipeline not initialized")
		}
		_, err := components.Pipeline.HandleInbound(msgCtx, msg)
		if errors.IsCategory(err, errors.ErrDuplicateEvent) {
			return nil
		}
		return err
	}

	adapterMgr, err := adapter.NewRuntimeManager(cfg.Adapters, messageHandler, adapter.RuntimeAdapterOptions{
		RequireSlackSecrets: false,
	})
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("init adapters: %w", err)
	}
	components.AdapterMgr = adapterMgr

	lockTimeout, err := config.DurationOrDefault(cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("parse store lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(cfg.Store.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("parse store lock retry: %w", err)
	}

	store, err := history.NewStore(workspaceID, cfg.Daemon.WorkspacePath, history.RuntimeConfig{
		LockTimeout:              lockTimeout,
		LockRetry:                lockRetry,
		LockMaxRetry:             cfg.Store.LockMaxRetry,
		InboxSize:                cfg.Store.InboxSize,
		TranscriptRotateMaxBytes: cfg.Store.TranscriptRotateMaxBytes,
	})
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("init history store: %w", err)
	}
	components.Store = store
	store.Start()

	router, err := model.NewModelRouter(cfg.Models)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("init model router: %w", err)
	}
	components.Router = router

	cacheTTL, err := config.DurationOrDefault(cfg.Cache.TTL, config.DefaultCacheTTL)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("parse cache ttl: %w", err)
	}
	judgeTimeout, err := config.DurationOrDefault(cfg.Judge.RequestTimeout, config.DefaultJudgeTimeout)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("parse judge request timeout: %w", err)
	}
	dedupeTTL, err := config.DurationOrDefault(cfg.Store.DedupeTTL, config.DefaultStoreDedupeTTL)
	if err != nil {
		components.cleanup()
		return nil, fmt.Errorf("parse store dedupe ttl: %w", err)
	}

	components.Engine = judge.NewEngine(
		cache.New(store, cacheTTL),
		judge.NewContextAssembler(store),
		router,
		judge.Options{
			ModelGroup:          cfg.Judge.ModelGroup,
			SystemPrompt:        cfg.Judge.SystemPrompt,
			ContextMessageCount: cfg.Judge.ContextMessageCount,
			UsePersona:          cfg.Judge.UsePersona,
			Temperature:         cfg.Judge.Temperature,
			MaxTokens:           cfg.Judge.MaxTokens,
			RequestTimeout:      judgeTimeout,
		},
	)

	components.Notifier = notify.NewChannelNotifier(0)

	// Merged notices go through a recording notifier so they land in the
	// transcript like they do in daemon mode.
	var merger gate.Merger
	if cfg.Merge.Enabled {
		mergeWait, err := config.DurationOrDefault(cfg.Merge.Wait, config.DefaultMergeWait)
		if err != nil {
			components.cleanup()
			return nil, fmt.Errorf("parse merge wait: %w", err)
		}
		components.Coordinator = merge.NewCoordinator(components.Engine, notify.NewRecordingNotifier(store, components.Notifier), merge.Options{
			Wait:     mergeWait,
			MaxCount: cfg.Merge.MaxCount,
		})
		merger = components.Coordinator
	}

	filter := scope.New(scope.Options{
		PrivateEnabled: cfg.Filter.PrivateEnabled,
		GroupEnabled:   cfg.Filter.GroupEnabled,
		GroupMode:      cfg.Filter.GroupMode,
		GroupIDs:       cfg.Filter.GroupIDs,
	})
	components.Gate = gate.New(filter, components.Engine, merger, gate.Options{
		CompleteTakeover: cfg.Filter.CompleteTakeover,
		MergeEnabled:     cfg.Merge.Enabled,
	})
	components.Pipeline = pipeline.New(store, components.Gate, components.Notifier, dedupeTTL)

	slog.Info("Runtime components initialized successfully", "workspace", workspaceID)
	return components, nil
}

func (r *RuntimeComponents) Start() error {
	if r.Pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	if r.AdapterMgr != nil {
		r.AdapterMgr.Start(r.Ctx)
	}
	return nil
}

func (r *RuntimeComponents) Stop() {
	slog.Info("Stopping runtime components...")

	r.Cancel()

	if r.Coordinator != nil {
		r.Coordinator.Stop()
	}

	if r.AdapterMgr != nil {
		if err := r.AdapterMgr.Stop(r.Ctx); err != nil {
			slog.Warn("Failed to stop adapter manager", "error", err)
		}
	}

	if r.Store != nil {
		r.Store.Stop()
	}

	slog.Info("Runtime components stopped")
}

func (r *RuntimeComponents) cleanup() {
	slog.Debug("Cleaning up runtime components...")
	r.Stop()
}
