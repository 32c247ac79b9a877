package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/miuzhaii/replygate/internal/errors"
)

// Notifier delivers system-context events into the agent runtime. Delivery
// is one-way: callers log failures and move on, a broken notifier never
// blocks a gate decision.
type Notifier interface {
	PushSystemContext(ctx context.Context, conversationKey, text string, triggerAgent bool) error
}

// Event is one emitted system-context payload.
type Event struct {
	ConversationKey string
	Text            string
	TriggerAgent    bool
	Timestamp       time.Time
}

// LogNotifier writes emissions to the structured log. It is the daemon
// default when no agent runtime is attached.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) PushSystemContext(ctx context.Context, conversationKey, text string, triggerAgent bool) error {
	slog.Info("System context emitted",
		"conversation", conversationKey,
		"trigger_agent", triggerAgent,
		"chars", len(text),
	)
	slog.Debug("System context payload", "conversation", conversationKey, "text", text)
	return nil
}

// ChannelNotifier hands emissions to an in-process consumer over a buffered
// channel. The REPL drains it to print what the agent runtime would have
// received.
type ChannelNotifier struct {
	events chan Event
}

const DefaultChannelBuffer = 32

func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = DefaultChannelBuffer
	}
	return &ChannelNotifier{events: make(chan Event, buffer)}
}

func (n *ChannelNotifier) PushSystemContext(ctx context.Context, conversationKey, text string, triggerAgent bool) error {
	evt := Event{
		ConversationKey: conversationKey,
		Text:            text,
		TriggerAgent:    triggerAgent,
		Timestamp:       time.Now(),
	}

	select {
	case n.events <- evt:
		return nil
	default:
		return errors.Transient("notifier buffer full")
	}
}

// Events exposes the emission stream for the consumer side.
func (n *ChannelNotifier) Events() <-chan Event {
	return n.events
}
