package judge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/miuzhaii/replygate/internal/history"
	"github.com/miuzhaii/replygate/internal/message"
)

// Context is the assembled background for one judgment. Either field may be
// empty; the prompt builder only renders what is present.
type Context struct {
	PersonaText    string
	TranscriptText string
}

// HistoryReader is the slice of the history store the assembler needs.
type HistoryReader interface {
	RecentMessages(key string, limit int) ([]history.Entry, error)
	EffectivePersona(key string) (*history.Persona, error)
}

// ContextAssembler gathers persona and transcript context for a
// conversation. Failures degrade: a missing piece is logged and skipped,
// never fatal to the judgment.
type ContextAssembler struct {
	store HistoryReader
}

func NewContextAssembler(store HistoryReader) *ContextAssembler {
	return &ContextAssembler{store: store}
}

func (a *ContextAssembler) BuildContext(ctx context.Context, conversationKey string, messageCount int, usePersona bool) Context {
	var out Context
	if err := ctx.Err(); err != nil {
		return out
	}

	if usePersona {
		persona, err := a.store.EffectivePersona(conversationKey)
		switch {
		case err != nil:
			slog.Warn("Failed to resolve persona, judging without it", "conversation", conversationKey, "error", err)
		case persona != nil:
			out.PersonaText = strings.TrimSpace(persona.Content)
		}
	}

	if messageCount > 0 {
		entries, err := a.store.RecentMessages(conversationKey, messageCount)
		if err != nil {
			slog.Warn("Failed to read recent messages, judging without them", "conversation", conversationKey, "error", err)
			return out
		}
		out.TranscriptText = renderTranscript(entries)
	}

	return out
}

// renderTranscript formats store entries (newest first) into an
// oldest-first "sender: content" transcript, skipping empty messages.
func renderTranscript(entries []history.Entry) string {
	lines := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		content := strings.TrimSpace(e.Content)
		if content == "" {
			continue
		}
		lines = append(lines, senderLabel(e)+": "+content)
	}
	return strings.Join(lines, "\n")
}

func senderLabel(e history.Entry) string {
	if name := strings.TrimSpace(e.SenderName); name != "" {
		return name
	}
	if id := strings.TrimSpace(e.SenderID); id != "" {
		return id
	}
	switch e.Role {
	case history.RoleAssistant:
		return "assistant"
	case history.RoleSystem:
		return "system"
	default:
		return message.UnknownSender
	}
}
