package message

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type Kind string

const (
	KindPrivate Kind = "private"
	KindGroup   Kind = "group"
)

// UnknownSender is recorded when an adapter can resolve neither a display
// name nor a platform sender id.
const UnknownSender = "unknown"

// Message is the normalized inbound message for all adapters.
type Message struct {
	// Identity
	ID     string `json:"id"`     // ULID
	Source string `json:"source"` // "telegram", "slack", "discord", "cli"

	// DeliveryID is the platform's own delivery identity (Telegram update id,
	// Slack channel+ts, Discord message id), used to drop redeliveries. Empty
	// for sources that never redeliver, like the REPL.
	DeliveryID string `json:"delivery_id,omitempty"`

	// Routing
	ConversationKey string `json:"conversation_key"` // "group_<id>" or "private_<id>"
	Kind            Kind   `json:"kind"`
	PlatformID      string `json:"platform_id"` // chat/channel id on the source platform

	// Sender
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"` // never empty, see New

	// Payload
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// New builds a normalized message with a fresh ULID. The sender name falls
// back to the platform sender id, then to UnknownSender, so downstream
// rendering never has to deal with an empty name.
func New(source string, kind Kind, platformID, senderID, senderName, content string) Message {
	name := strings.TrimSpace(senderName)
	if name == "" {
		name = strings.TrimSpace(senderID)
	}
	if name == "" {
		name = UnknownSender
	}

	return Message{
		ID:              ulid.Make().String(),
		Source:          source,
		ConversationKey: Key(kind, platformID),
		Kind:            kind,
		PlatformID:      platformID,
		SenderID:        senderID,
		SenderName:      name,
		Content:         content,
		Timestamp:       time.Now(),
	}
}

// Key builds the canonical conversation key, e.g. "group_123" or "private_42".
func Key(kind Kind, platformID string) string {
	return string(kind) + "_" + platformID
}

// SplitKey parses a conversation key back into kind and platform id.
// Returns ok=false for keys that carry neither known prefix.
func SplitKey(key string) (Kind, string, bool) {
	if id, found := strings.CutPrefix(key, string(KindGroup)+"_"); found {
		return KindGroup, id, true
	}
	if id, found := strings.CutPrefix(key, string(KindPrivate)+"_"); found {
		return KindPrivate, id, true
	}
	return "", "", false
}
