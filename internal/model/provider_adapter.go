package model

import (
	"context"
	"fmt"

	"github.com/miuzhaii/replygate/internal/model/contract"
	anthropicProvider "github.com/miuzhaii/replygate/internal/model/providers/anthropic"
	geminiProvider "github.com/miuzhaii/replygate/internal/model/providers/gemini"
	openaiProvider "github.com/miuzhaii/replygate/internal/model/providers/openai"
)

// ProviderAdapter wraps provider-specific implementations to satisfy
// model.Provider. It also rewrites the model group name in the request into
// the provider-side model id before dispatching.
type ProviderAdapter struct {
	provider     interface{}
	name         string
	model        string
	providerType string
}

func (a *ProviderAdapter) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	req.Model = a.model

	switch p := a.provider.(type) {
	case *openaiProvider.Provider:
		return p.Generate(ctx, req)
	case *anthropicProvider.Provider:
		return p.Generate(ctx, req)
	case *geminiProvider.Provider:
		return p.Generate(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported provider type: %T", a.provider)
	}
}

func (a *ProviderAdapter) Name() string {
	return a.name
}

func (a *ProviderAdapter) Type() string {
	return a.providerType
}

func (a *ProviderAdapter) Health(ctx context.Context) error {
	return nil
}
