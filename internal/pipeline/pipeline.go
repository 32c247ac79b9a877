package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/miuzhaii/replygate/internal/errors"
	"github.com/miuzhaii/replygate/internal/gate"
	"github.com/miuzhaii/replygate/internal/history"
	"github.com/miuzhaii/replygate/internal/message"
	"github.com/miuzhaii/replygate/internal/notify"
)

// Store is the slice of the history store the pipeline needs: transcript
// writes and delivery dedupe.
type Store interface {
	RecordMessage(key string, e history.Entry) error
	CheckAndMarkDelivery(key string, ttl time.Duration) bool
}

// Pipeline is what adapters call for every inbound message: persist it,
// gate it, act on the signal. The agent runtime itself lives behind the
// notifier and is not this package's business.
type Pipeline struct {
	store     Store
	gate      *gate.Gate
	notifier  notify.Notifier
	dedupeTTL time.Duration
}

func New(store Store, g *gate.Gate, notifier notify.Notifier, dedupeTTL time.Duration) *Pipeline {
	return &Pipeline{
		store:     store,
		gate:      g,
		notifier:  notifier,
		dedupeTTL: dedupeTTL,
	}
}

// HandleInbound records the message and runs the gate. A ForceTrigger
// verdict is pushed to the notifier with the trigger flag set; every other
// signal only logs. Record failures are logged, not returned: history being
// down must not change what happens to the message.
//
// Messages carrying a delivery id are checked against the dedupe index
// first; a redelivery is dropped without recording or judging and reported
// as ErrDuplicateEvent.
func (p *Pipeline) HandleInbound(ctx context.Context, msg message.Message) (gate.Signal, error) {
	if msg.ConversationKey == "" {
		return gate.Allow, fmt.Errorf("handle inbound: %w", errors.InvalidInput("message has no conversation key"))
	}

	if msg.DeliveryID != "" {
		key := msg.Source + ":" + msg.DeliveryID
		if p.store.CheckAndMarkDelivery(key, p.dedupeTTL) {
			slog.Warn("Duplicate delivery ignored", "conversation", msg.ConversationKey, "key", key)
			return gate.BlockAll, errors.ErrDuplicateEvent
		}
	}

	if err := p.store.RecordMessage(msg.ConversationKey, history.Entry{
		ID:         msg.ID,
		Timestamp:  msg.Timestamp,
		Role:       history.RoleUser,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
	}); err != nil {
		slog.Warn("Failed to record inbound message",
			"conversation", msg.ConversationKey,
			"error", err,
		)
	}

	signal := p.gate.Handle(ctx, msg)

	switch signal {
	case gate.ForceTrigger:
		if err := p.notifier.PushSystemContext(ctx, msg.ConversationKey, msg.Content, true); err != nil {
			slog.Warn("Failed to push trigger", "conversation", msg.ConversationKey, "error", err)
		}
	case gate.BlockAll:
		slog.Info("Message dropped", "conversation", msg.ConversationKey, "source", msg.Source)
	default:
		slog.Debug("Message handled",
			"conversation", msg.ConversationKey,
			"source", msg.Source,
			"signal", signal.String(),
		)
	}

	return signal, nil
}
