package history

import "time"

// --- Conversation Index (conversations/index.json) ---

type ConversationMeta struct {
	Key          string    `json:"key"` // "group_<id>" or "private_<id>"
	Kind         string    `json:"kind"`
	PlatformID   string    `json:"platform_id"`
	Source       string    `json:"source,omitempty"` // last adapter that wrote to it
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

type ConversationIndex struct {
	Conversations map[string]ConversationMeta `json:"conversations"`
}

// --- Transcript (conversations/<key>.jsonl) ---

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Entry struct {
	ID         string    `json:"id"` // ULID
	Timestamp  time.Time `json:"ts"`
	Role       Role      `json:"role"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Content    string    `json:"content"`
	Recalled   bool      `json:"recalled,omitempty"` // withdrawn on the platform, hidden from context
}

// --- Personas (personas.json) ---

type Persona struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type PersonaFile struct {
	DefaultID string             `json:"default_id,omitempty"`
	Personas  map[string]Persona `json:"personas"`
}

// --- Channel bindings (channels.json) ---

type ChannelBinding struct {
	ConversationKey string    `json:"conversation_key"`
	PersonaID       string    `json:"persona_id,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ChannelFile struct {
	Channels map[string]ChannelBinding `json:"channels"`
}
