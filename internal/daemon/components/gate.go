package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/miuzhaii/replygate/internal/adapter"
	"github.com/miuzhaii/replygate/internal/cache"
	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/daemon"
	"github.com/miuzhaii/replygate/internal/errors"
	"github.com/miuzhaii/replygate/internal/gate"
	"github.com/miuzhaii/replygate/internal/judge"
	"github.com/miuzhaii/replygate/internal/merge"
	"github.com/miuzhaii/replygate/internal/message"
	"github.com/miuzhaii/replygate/internal/notify"
	"github.com/miuzhaii/replygate/internal/pipeline"
	"github.com/miuzhaii/replygate/internal/scope"
)

// GatePipelineComponent assembles the decision chain: scope filter, decision
// cache, judgment engine, optional merge coordinator, gate, and the inbound
// pipeline adapters call into. Emissions go to the supplied notifier; pass
// nil to log them.
type GatePipelineComponent struct {
	cfg         *config.Config
	historyComp *HistoryStoreComponent
	modelComp   *ModelRouterComponent
	notifier    notify.Notifier

	gate        *gate.Gate
	coordinator *merge.Coordinator
	pipeline    *pipeline.Pipeline
	mu          sync.RWMutex
}

func NewGatePipelineComponent(cfg *config.Config, historyComp *HistoryStoreComponent, modelComp *ModelRouterComponent, notifier notify.Notifier) *GatePipelineComponent {
	return &GatePipelineComponent{
		cfg:         cfg,
		historyComp: historyComp,
		modelComp:   modelComp,
		notifier:    notifier,
	}
}

func (g *GatePipelineComponent) Name() string {
	return "GatePipeline"
}

func (g *GatePipelineComponent) Dependencies() []string {
	return []string{"HistoryStore", "ModelRouter"}
}

func (g *GatePipelineComponent) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.historyComp == nil || g.modelComp == nil {
		return fmt.Errorf("required component dependencies not provided")
	}

	store := g.historyComp.GetStore()
	router := g.modelComp.GetRouter()
	if store == nil || router == nil {
		return fmt.Errorf("required dependencies not initialized")
	}

	cacheTTL, err := config.DurationOrDefault(g.cfg.Cache.TTL, config.DefaultCacheTTL)
	if err != nil {
		return fmt.Errorf("parse cache ttl: %w", err)
	}
	judgeTimeout, err := config.DurationOrDefault(g.cfg.Judge.RequestTimeout, config.DefaultJudgeTimeout)
	if err != nil {
		return fmt.Errorf("parse judge request timeout: %w", err)
	}
	dedupeTTL, err := config.DurationOrDefault(g.cfg.Store.DedupeTTL, config.DefaultStoreDedupeTTL)
	if err != nil {
		return fmt.Errorf("parse store dedupe ttl: %w", err)
	}

	filter := scope.New(scope.Options{
		PrivateEnabled: g.cfg.Filter.PrivateEnabled,
		GroupEnabled:   g.cfg.Filter.GroupEnabled,
		GroupMode:      g.cfg.Filter.GroupMode,
		GroupIDs:       g.cfg.Filter.GroupIDs,
	})
	engine := judge.NewEngine(
		cache.New(store, cacheTTL),
		judge.NewContextAssembler(store),
		router,
		judge.Options{
			ModelGroup:          g.cfg.Judge.ModelGroup,
			SystemPrompt:        g.cfg.Judge.SystemPrompt,
			ContextMessageCount: g.cfg.Judge.ContextMessageCount,
			UsePersona:          g.cfg.Judge.UsePersona,
			Temperature:         g.cfg.Judge.Temperature,
			MaxTokens:           g.cfg.Judge.MaxTokens,
			RequestTimeout:      judgeTimeout,
		},
	)

	notifier := g.notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier()
	}

	// The coordinator gets a recording notifier so merged notices land in
	// the transcript. Direct triggers skip it, the user message is already
	// recorded by the pipeline.
	var merger gate.Merger
	if g.cfg.Merge.Enabled {
		mergeWait, err := config.DurationOrDefault(g.cfg.Merge.Wait, config.DefaultMergeWait)
		if err != nil {
			return fmt.Errorf("parse merge wait: %w", err)
		}
		g.coordinator = merge.NewCoordinator(engine, notify.NewRecordingNotifier(store, notifier), merge.Options{
			Wait:     mergeWait,
			MaxCount: g.cfg.Merge.MaxCount,
		})
		merger = g.coordinator
	}

	g.gate = gate.New(filter, engine, merger, gate.Options{
		CompleteTakeover: g.cfg.Filter.CompleteTakeover,
		MergeEnabled:     g.cfg.Merge.Enabled,
	})
	g.pipeline = pipeline.New(store, g.gate, notifier, dedupeTTL)

	slog.Info("GatePipeline initialized", "component", g.Name(),
		"merge_enabled", g.cfg.Merge.Enabled,
		"complete_takeover", g.cfg.Filter.CompleteTakeover)
	return nil
}

func (g *GatePipelineComponent) Start(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.pipeline == nil {
		return fmt.Errorf("GatePipeline not initialized")
	}
	slog.Info("GatePipeline started", "component", g.Name())
	return nil
}

func (g *GatePipelineComponent) Stop(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.coordinator != nil {
		g.coordinator.Stop()
	}
	slog.Info("GatePipeline stopped", "component", g.Name())
	return nil
}

func (g *GatePipelineComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.pipeline == nil {
		return &daemon.ComponentHealth{
			Name:    g.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    g.Name(),
		Healthy: true,
	}, nil
}

// Handler adapts the pipeline for the platform adapters. The lookup is lazy
// so the manager can be wired before Init has run. Duplicate redeliveries
// are swallowed here, the pipeline already logged them.
func (g *GatePipelineComponent) Handler() adapter.MessageHandler {
	return func(ctx context.Context, msg message.Message) error {
		p := g.GetPipeline()
		if p == nil {
			return fmt.Errorf("gate pipeline not initialized")
		}
		_, err := p.HandleInbound(ctx, msg)
		if errors.IsCategory(err, errors.ErrDuplicateEvent) {
			return nil
		}
		return err
	}
}

func (g *GatePipelineComponent) GetPipeline() *pipeline.Pipeline {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pipeline
}

func (g *GatePipelineComponent) GetGate() *gate.Gate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gate
}

func (g *GatePipelineComponent) GetCoordinator() *merge.Coordinator {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.coordinator
}
