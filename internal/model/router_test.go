package model

import (
	"context"
	"errors"
	"testing"

	"github.com/miuzhaii/replygate/internal/config"
	rgErrors "github.com/miuzhaii/replygate/internal/errors"
	"github.com/miuzhaii/replygate/internal/model/contract"
)

type stubProvider struct {
	name  string
	resp  *contract.CompletionResponse
	err   error
	calls int
}

func (s *stubProvider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	s.calls++
	return s.resp, s.err
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Type() string { return "stub" }

func (s *stubProvider) Health(ctx context.Context) error { return nil }

func TestNewModelRouterEmptyRegistry(t *testing.T) {
	router, err := NewModelRouter(config.ModelsConfig{})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	if len(router.ListModels()) != 0 {
		t.Fatalf("expected no models, got %v", router.ListModels())
	}
}

func TestRouterRegistersModelGroups(t *testing.T) {
	router, err := NewModelRouter(config.ModelsConfig{
		Registry: []config.ModelRegistry{
			{Name: "judge-default", Provider: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"},
			{Name: "judge-local", Provider: "ollama", Model: "llama3"},
		},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	models := router.ListModels()
	if len(models) != 2 {
		t.Fatalf("expected 2 model groups, got %v", models)
	}
	if models[0] != "judge-default" || models[1] != "judge-local" {
		t.Fatalf("expected sorted group names, got %v", models)
	}
}

func TestRouterSkipsProvidersWithoutKeys(t *testing.T) {
	// All entries invalid: router construction must fail.
	_, err := NewModelRouter(config.ModelsConfig{
		Registry: []config.ModelRegistry{
			{Name: "judge-default", Provider: "openai"},
		},
	})
	if err == nil {
		t.Fatal("expected error when no provider could be initialized")
	}
}

func TestRouteUnknownModelWithoutFallback(t *testing.T) {
	router, err := NewModelRouter(config.ModelsConfig{
		Registry: []config.ModelRegistry{
			{Name: "judge-default", Provider: "openai", APIKey: "sk-test"},
		},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	_, err = router.Route(context.Background(), "missing-group", contract.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error for unknown model group")
	}
	if !rgErrors.IsCategory(err, rgErrors.ErrNotFound) {
		t.Fatalf("expected not found category, got %v", err)
	}
}

func TestRouterUnknownProviderType(t *testing.T) {
	_, err := NewModelRouter(config.ModelsConfig{
		Registry: []config.ModelRegistry{
			{Name: "judge-default", Provider: "watsonx"},
		},
	})
	if err == nil {
		t.Fatal("expected error for unknown provider type")
	}
}

func TestRouteMapsProviderFailureCategory(t *testing.T) {
	router, err := NewModelRouter(config.ModelsConfig{
		Registry: []config.ModelRegistry{
			{Name: "judge-default", Provider: "openai", APIKey: "sk-test"},
		},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	router.providers["judge-default"] = &stubProvider{err: errors.New("429 rate limit exceeded")}

	_, err = router.Route(context.Background(), "judge-default", contract.CompletionRequest{})
	if err == nil {
		t.Fatal("expected provider failure")
	}
	if !rgErrors.IsCategory(err, rgErrors.ErrTransient) {
		t.Fatalf("expected transient category for rate limit, got %v", err)
	}
}

func TestRouteFallsBackOnProviderFailure(t *testing.T) {
	router, err := NewModelRouter(config.ModelsConfig{
		Fallback: "judge-backup",
		Registry: []config.ModelRegistry{
			{Name: "judge-default", Provider: "openai", APIKey: "sk-test"},
			{Name: "judge-backup", Provider: "openai", APIKey: "sk-test"},
		},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	primary := &stubProvider{err: errors.New("connection refused")}
	backup := &stubProvider{resp: &contract.CompletionResponse{Content: "ok"}}
	router.providers["judge-default"] = primary
	router.providers["judge-backup"] = backup

	resp, err := router.Route(context.Background(), "judge-default", contract.CompletionRequest{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("expected fallback response, got %+v", resp)
	}
	if primary.calls != 1 || backup.calls != 1 {
		t.Fatalf("calls: primary=%d backup=%d", primary.calls, backup.calls)
	}
}
