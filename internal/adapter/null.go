package adapter

import (
	"context"

	"github.com/miuzhaii/replygate/internal/errors"
	"github.com/miuzhaii/replygate/internal/message"
)

// NullAdapter is an inert input adapter for tests and system sources.
// Inject feeds a message through the handler as if a platform delivered it.
type NullAdapter struct {
	name    string
	handler MessageHandler
}

func NewNullAdapter(name string, handler MessageHandler) *NullAdapter {
	if name == "" {
		name = "null"
	}
	return &NullAdapter{name: name, handler: handler}
}

func (a *NullAdapter) Name() string {
	return a.name
}

func (a *NullAdapter) Start(ctx context.Context) error {
	return nil
}

func (a *NullAdapter) Stop(ctx context.Context) error {
	return nil
}

func (a *NullAdapter) Inject(ctx context.Context, msg message.Message) error {
	if a.handler == nil {
		return errors.Internal("null adapter has no handler")
	}
	return a.handler(ctx, msg)
}

func (a *NullAdapter) Health(ctx context.Context) error {
	return nil
}
