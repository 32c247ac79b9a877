package model

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/miuzhaii/replygate/internal/config"
	rgErrors "github.com/miuzhaii/replygate/internal/errors"
	"github.com/miuzhaii/replygate/internal/logger"
	"github.com/miuzhaii/replygate/internal/model/contract"
	anthropicProvider "github.com/miuzhaii/replygate/internal/model/providers/anthropic"
	geminiProvider "github.com/miuzhaii/replygate/internal/model/providers/gemini"
	openaiProvider "github.com/miuzhaii/replygate/internal/model/providers/openai"
)

// DefaultModelRouter implements ModelRouter. Registry entries are named
// model groups; the router resolves a group to its provider and the adapter
// rewrites the group name into the provider-side model id.
type DefaultModelRouter struct {
	cfg       config.ModelsConfig
	providers map[string]Provider
	mapper    rgErrors.ErrorMapper
	mu        sync.RWMutex
}

// NewModelRouter creates a new model router
func NewModelRouter(cfg config.ModelsConfig) (*DefaultModelRouter, error) {
	router := &DefaultModelRouter{
		cfg:       cfg,
		providers: make(map[string]Provider),
		mapper:    rgErrors.NewDefaultErrorMapper(),
	}

	if err := router.initProviders(); err != nil {
		return nil, err
	}

	return router, nil
}

// Route routes a completion request to the appropriate provider
func (r *DefaultModelRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	traceID := logger.GetTraceID(ctx)

	slog.Info("Routing completion request", "model", model, "trace_id", traceID)

	provider, err := r.resolveProvider(ctx, model)
	if err != nil {
		return nil, err
	}

	resp, err := r.executeWithFallback(ctx, model, provider, req, traceID)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// ListModels returns all registered model group names
func (r *DefaultModelRouter) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.providers))
	for name := range r.providers {
		models = append(models, name)
	}
	sort.Strings(models)

	return models
}

// Health checks the health of the router and its providers
func (r *DefaultModelRouter) Health(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, provider := range r.providers {
		if err := provider.Health(ctx); err != nil {
			slog.Warn("Provider unhealthy", "provider", name, "error", err)
			return rgErrors.Transient(fmt.Sprintf("provider %s unhealthy", name))
		}
	}

	return nil
}

// initProviders initializes all providers from configuration
func (r *DefaultModelRouter) initProviders() error {
	for _, entry := range r.cfg.Registry {
		provider, err := r.createProvider(entry)
		if err != nil {
			slog.Warn("Failed to create provider", "provider", entry.Provider, "group", entry.Name, "error", err)
			continue
		}

		r.providers[entry.Name] = provider
		slog.Info("Provider initialized", "group", entry.Name, "type", entry.Provider)
	}

	if len(r.providers) == 0 && len(r.cfg.Registry) > 0 {
		return rgErrors.Internal("no providers initialized")
	}

	return nil
}

// resolveProvider resolves a provider by model group name with fallback
func (r *DefaultModelRouter) resolveProvider(ctx context.Context, model string) (Provider, error) {
	select {
	case <-ctx.Done():
		return nil, rgErrors.Wrap(ctx.Err(), "provider resolution cancelled")
	default:
	}

	r.mu.RLock()
	provider, exists := r.providers[model]
	r.mu.RUnlock()

	if !exists {
		slog.Warn("Model group not found", "model", model)

		if r.cfg.Fallback != "" && model != r.cfg.Fallback {
			slog.Info("Trying fallback model", "model", model, "fallback", r.cfg.Fallback)

			fallbackProvider, fallbackExists := r.providers[r.cfg.Fallback]
			if !fallbackExists {
				return nil, rgErrors.NotFound(fmt.Sprintf("model group %s not found", model))
			}

			return fallbackProvider, nil
		}

		return nil, rgErrors.NotFound(fmt.Sprintf("model group %s not found", model))
	}

	return provider, nil
}

// executeWithFallback executes a request with fallback logic
func (r *DefaultModelRouter) executeWithFallback(ctx context.Context, model string, provider Provider, req contract.CompletionRequest, traceID string) (*contract.CompletionResponse, error) {
	maxAttempts := r.cfg.MaxFallbackAttempts
	if maxAttempts <= 0 {
		maxAttempts = config.DefaultModelMaxFallbackAttempts
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	currentModel := model
	currentProvider := provider

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, rgErrors.Wrap(ctx.Err(), "request execution cancelled")
		default:
		}

		resp, err := currentProvider.Generate(ctx, req)
		if err == nil {
			slog.Info("Request completed", "model", currentModel, "attempt", attempt+1, "trace_id", traceID)
			return resp, nil
		}

		mapped := r.mapper.MapError(err)
		slog.Error("Provider request failed", "model", currentModel, "attempt", attempt+1,
			"category", r.mapper.Category(mapped), "error", err)

		if r.cfg.Fallback == "" || currentModel == r.cfg.Fallback {
			return nil, rgErrors.Wrap(mapped, "provider request failed")
		}

		slog.Info("Attempting fallback", "from", currentModel, "to", r.cfg.Fallback)

		fallbackProvider, exists := r.providers[r.cfg.Fallback]
		if !exists {
			return nil, rgErrors.NotFound(fmt.Sprintf("fallback model %s not found", r.cfg.Fallback))
		}

		currentModel = r.cfg.Fallback
		currentProvider = fallbackProvider
	}

	return nil, rgErrors.Internal("fallback exhausted")
}

// createProvider creates a provider instance based on registry entry
func (r *DefaultModelRouter) createProvider(entry config.ModelRegistry) (Provider, error) {
	modelID := entry.Model
	if modelID == "" {
		modelID = entry.Name
	}

	switch entry.Provider {
	case "openai":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOpenAIBaseURL
		}

		if entry.APIKey == "" {
			return nil, rgErrors.InvalidInput("API key required for OpenAI provider")
		}

		return &ProviderAdapter{
			provider:     openaiProvider.New(entry.APIKey, baseURL, modelID),
			name:         entry.Name,
			model:        modelID,
			providerType: "openai",
		}, nil

	case "ollama":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOllamaBaseURL
		}

		apiKey := entry.APIKey
		if apiKey == "" {
			apiKey = config.DefaultOllamaAPIKey
		}

		return &ProviderAdapter{
			provider:     openaiProvider.New(apiKey, baseURL, modelID),
			name:         entry.Name,
			model:        modelID,
			providerType: "ollama",
		}, nil

	case "anthropic":
		if entry.APIKey == "" {
			return nil, rgErrors.InvalidInput("API key required for Anthropic provider")
		}

		return &ProviderAdapter{
			provider:     anthropicProvider.New(entry.APIKey),
			name:         entry.Name,
			model:        modelID,
			providerType: "anthropic",
		}, nil

	case "gemini":
		if entry.APIKey == "" {
			return nil, rgErrors.InvalidInput("API key required for Gemini provider")
		}

		provider, err := geminiProvider.New(entry.APIKey)
		if err != nil {
			return nil, rgErrors.WrapWithCategory(err, "failed to create Gemini provider", rgErrors.ErrInternal)
		}

		return &ProviderAdapter{
			provider:     provider,
			name:         entry.Name,
			model:        modelID,
			providerType: "gemini",
		}, nil

	default:
		return nil, rgErrors.InvalidInput(fmt.Sprintf("unknown provider type: %s", entry.Provider))
	}
}
