package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/miuzhaii/replygate/internal/config"
)

type RuntimeAdapterOptions struct {
	RequireSlackSecrets bool
}

// RuntimeManager owns the enabled platform adapters and their lifecycle.
type RuntimeManager struct {
	mu      sync.RWMutex
	inputs  []InputAdapter
	started bool
}

func NewRuntimeManager(cfg config.AdaptersConfig, handler MessageHandler, opts RuntimeAdapterOptions) (*RuntimeManager, error) {
	m := &RuntimeManager{}

	if cfg.Slack.Enabled {
		if opts.RequireSlackSecrets {
			if strings.TrimSpace(cfg.Slack.SigningSecret) == "" && strings.TrimSpace(os.Getenv("SLACK_SIGNING_SECRET")) == "" {
				return nil, fmt.Errorf("adapters.slack.signing_secret is required when slack adapter is enabled")
			}
		}
		if strings.TrimSpace(cfg.Slack.BotToken) == "" && strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN")) == "" {
			return nil, fmt.Errorf("adapters.slack.bot_token is required when slack adapter is enabled")
		}

		m.inputs = append(m.inputs, NewSlackAdapter(cfg.Slack.Port, cfg.Slack.SigningSecret, cfg.Slack.BotToken, handler))
	}

	if cfg.Telegram.Enabled {
		token := strings.TrimSpace(cfg.Telegram.BotToken)
		if token == "" {
			return nil, fmt.Errorf("adapters.telegram.bot_token is required when telegram adapter is enabled")
		}

		m.inputs = append(m.inputs, NewTelegramAdapter(token, handler, cfg.Telegram.UpdateTimeout))
	}

	if cfg.Discord.Enabled {
		token := strings.TrimSpace(cfg.Discord.BotToken)
		if token == "" {
			return nil, fmt.Errorf("adapters.discord.bot_token is required when discord adapter is enabled")
		}

		m.inputs = append(m.inputs, NewDiscordAdapter(token, handler))
	}

	return m, nil
}

// InputAdapters returns the built adapters in configuration order.
func (m *RuntimeManager) InputAdapters() []InputAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]InputAdapter, len(m.inputs))
	copy(out, m.inputs)
	return out
}

func (m *RuntimeManager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.Unlock()

	for _, input := range inputs {
		adapter := input
		go func() {
			slog.Info("Starting input adapter", "adapter", adapter.Name())
			if err := adapter.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Input adapter stopped with error", "adapter", adapter.Name(), "error", err)
			}
		}()
	}
}

func (m *RuntimeManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.Unlock()

	var errs []string
	for _, input := range inputs {
		if err := input.Stop(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", input.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to stop adapters: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m *RuntimeManager) Health(ctx context.Context) error {
	m.mu.RLock()
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.RUnlock()

	for _, input := range inputs {
		if err := input.Health(ctx); err != nil {
			return fmt.Errorf("input adapter %s unhealthy: %w", input.Name(), err)
		}
	}
	return nil
}
