package gate

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/miuzhaii/replygate/internal/message"
	"github.com/miuzhaii/replygate/internal/scope"
)

// Signal is the gate's verdict on one inbound message. The host consumes
// it as: Allow passes the message through untouched, BlockTrigger records
// it without waking the agent, BlockAll drops it entirely, ForceTrigger
// wakes the agent now.
type Signal int

const (
	Allow Signal = iota
	BlockTrigger
	BlockAll
	ForceTrigger
)

func (s Signal) String() string {
	switch s {
	case Allow:
		return "allow"
	case BlockTrigger:
		return "block_trigger"
	case BlockAll:
		return "block_all"
	case ForceTrigger:
		return "force_trigger"
	default:
		return "unknown"
	}
}

// Judge is the slice of the judgment engine the gate needs.
type Judge interface {
	ShouldReply(ctx context.Context, text, conversationKey string) bool
}

// Merger buffers bursts. Offer reports false when nothing was buffered, in
// which case the gate falls back to judging the message directly.
type Merger interface {
	Offer(ctx context.Context, msg message.Message) bool
}

type Options struct {
	CompleteTakeover bool
	MergeEnabled     bool
}

// Gate runs the decision chain for one inbound message: scope check, burst
// buffering, judgment. Takeover and merge are runtime-togglable so the REPL
// can flip them per session.
type Gate struct {
	filter *scope.Filter
	judge  Judge
	merger Merger

	takeover     atomic.Bool
	mergeEnabled atomic.Bool
}

func New(filter *scope.Filter, judge Judge, merger Merger, opts Options) *Gate {
	g := &Gate{
		filter: filter,
		judge:  judge,
		merger: merger,
	}
	g.takeover.Store(opts.CompleteTakeover)
	g.mergeEnabled.Store(opts.MergeEnabled && merger != nil)
	return g
}

// Handle decides what happens to one message. It never panics outward: an
// escaping panic is logged and resolved to ForceTrigger so a broken gate
// cannot silence the agent.
func (g *Gate) Handle(ctx context.Context, msg message.Message) (signal Signal) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in gate, failing open",
				"conversation", msg.ConversationKey,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			signal = ForceTrigger
		}
	}()

	if !g.filter.InScope(msg.Kind, msg.PlatformID) {
		slog.Debug("Conversation out of scope, passing through", "conversation", msg.ConversationKey)
		return Allow
	}

	if g.MergeEnabled() {
		if g.merger.Offer(ctx, msg) {
			return BlockTrigger
		}
		// Coordinator is shut down, judge directly.
	}

	if g.judge.ShouldReply(ctx, msg.Content, msg.ConversationKey) {
		return ForceTrigger
	}
	if g.Takeover() {
		return BlockAll
	}
	return BlockTrigger
}

func (g *Gate) Takeover() bool {
	return g.takeover.Load()
}

func (g *Gate) SetTakeover(on bool) {
	g.takeover.Store(on)
}

func (g *Gate) MergeEnabled() bool {
	return g.mergeEnabled.Load() && g.merger != nil
}

func (g *Gate) SetMergeEnabled(on bool) {
	g.mergeEnabled.Store(on)
}
