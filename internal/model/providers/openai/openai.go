package openai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/miuzhaii/replygate/internal/model/contract"

	"github.com/sashabaranov/go-openai"
)

type Provider struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Provider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		baseURL = strings.TrimSuffix(baseURL, "/")
		cfg.BaseURL = baseURL
	}

	client := openai.NewClientWithConfig(cfg)
	return &Provider{client: client, model: model}
}

func (p *Provider) Name() string {
	return "openai"
}

func (p *Provider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return &contract.CompletionResponse{Content: resp.Choices[0].Message.Content}, nil
}
