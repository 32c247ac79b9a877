package judge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/miuzhaii/replygate/internal/cache"
	"github.com/miuzhaii/replygate/internal/model/contract"
)

// Router is the slice of the model router the engine needs.
type Router interface {
	Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error)
}

type Options struct {
	ModelGroup          string
	SystemPrompt        string
	ContextMessageCount int
	UsePersona          bool
	Temperature         float64
	MaxTokens           int
	RequestTimeout      time.Duration
}

// Engine decides whether a message deserves a reply. It never returns an
// error: any failure on the model path resolves to true so the assistant
// stays responsive when the classifier is down.
type Engine struct {
	cache     *cache.Cache
	assembler *ContextAssembler
	router    Router
	opts      Options
}

func NewEngine(decisionCache *cache.Cache, assembler *ContextAssembler, router Router, opts Options) *Engine {
	return &Engine{
		cache:     decisionCache,
		assembler: assembler,
		router:    router,
		opts:      opts,
	}
}

func (e *Engine) ShouldReply(ctx context.Context, text, conversationKey string) bool {
	subject := strings.TrimSpace(text)
	if subject == "" {
		slog.Debug("Empty message, skipping judgment", "conversation", conversationKey)
		return false
	}

	if value, hit := e.cache.Lookup(subject); hit {
		slog.Debug("Decision cache hit", "conversation", conversationKey, "should_reply", value)
		return value
	}

	judgeCtx := buildContextSafe(ctx, e.assembler, conversationKey, e.opts.ContextMessageCount, e.opts.UsePersona)
	prompt := buildPrompt(judgeCtx, subject)

	reqCtx := ctx
	if e.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, e.opts.RequestTimeout)
		defer cancel()
	}

	resp, err := e.router.Route(reqCtx, e.opts.ModelGroup, contract.CompletionRequest{
		Model:       e.opts.ModelGroup,
		System:      e.opts.SystemPrompt,
		Messages:    []contract.Message{{Role: "user", Content: prompt}},
		Temperature: float32(e.opts.Temperature),
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		// Fail open. The result is deliberately not cached so the next
		// message gets a real judgment.
		slog.Warn("Judgment request failed, allowing reply", "conversation", conversationKey, "error", err)
		return true
	}

	verdict, mode := parseVerdict(resp.Content)
	slog.Info("Judgment complete",
		"conversation", conversationKey,
		"should_reply", verdict,
		"parse_mode", string(mode),
	)

	if err := e.cache.Store(subject, verdict); err != nil {
		slog.Warn("Failed to cache decision", "conversation", conversationKey, "error", err)
	}

	return verdict
}

func buildContextSafe(ctx context.Context, assembler *ContextAssembler, conversationKey string, messageCount int, usePersona bool) Context {
	if assembler == nil {
		return Context{}
	}
	return assembler.BuildContext(ctx, conversationKey, messageCount, usePersona)
}
