package adapter

import (
	"context"

	"github.com/miuzhaii/replygate/internal/message"
)

// MessageHandler receives every normalized inbound message. Adapters call
// it and log failures; what happens to the message is the pipeline's
// business. The indirection avoids a dependency cycle between adapters and
// the pipeline.
type MessageHandler func(ctx context.Context, msg message.Message) error

// InputAdapter is a platform listener that turns platform events into
// normalized messages.
type InputAdapter interface {
	// Name returns the adapter name (e.g. "telegram", "slack", "discord").
	Name() string

	// Start begins listening (long-poll, gateway, or HTTP server). Must
	// respect context cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter.
	Stop(ctx context.Context) error

	// Health checks if the adapter is connected.
	Health(ctx context.Context) error
}
