package notify

import (
	"context"
	"log/slog"

	"github.com/miuzhaii/replygate/internal/history"
)

// Recorder is the slice of the history store emissions are written through.
type Recorder interface {
	RecordMessage(key string, e history.Entry) error
}

// RecordingNotifier writes each emission into the conversation transcript
// as a system entry before handing it to the wrapped notifier. Later
// judgments then see the merged context in their transcript window.
type RecordingNotifier struct {
	store Recorder
	next  Notifier
}

func NewRecordingNotifier(store Recorder, next Notifier) *RecordingNotifier {
	return &RecordingNotifier{store: store, next: next}
}

func (n *RecordingNotifier) PushSystemContext(ctx context.Context, conversationKey, text string, triggerAgent bool) error {
	err := n.store.RecordMessage(conversationKey, history.Entry{
		Role:    history.RoleSystem,
		Content: text,
	})
	if err != nil {
		slog.Warn("Failed to record system context", "conversation", conversationKey, "error", err)
	}
	return n.next.PushSystemContext(ctx, conversationKey, text, triggerAgent)
}
