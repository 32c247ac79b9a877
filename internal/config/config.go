package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/miuzhaii/replygate/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Filter    FilterConfig    `koanf:"filter"`
	Judge     JudgeConfig     `koanf:"judge"`
	Cache     CacheConfig     `koanf:"cache"`
	Merge     MergeConfig     `koanf:"merge"`
	Models    ModelsConfig    `koanf:"models"`
	Store     StoreConfig     `koanf:"store"`
	Retention RetentionConfig `koanf:"retention"`
	Adapters  AdaptersConfig  `koanf:"adapters"`
	Daemon    DaemonConfig    `koanf:"daemon"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

// FilterConfig controls which conversations the gate manages at all.
type FilterConfig struct {
	PrivateEnabled   bool     `koanf:"private_enabled"`
	GroupEnabled     bool     `koanf:"group_enabled"`
	CompleteTakeover bool     `koanf:"complete_takeover"`
	GroupMode        string   `koanf:"group_mode"` // "disabled", "allowlist", "denylist"
	GroupIDs         []string `koanf:"group_ids"`
}

type JudgeConfig struct {
	ModelGroup          string  `koanf:"model_group"`
	SystemPrompt        string  `koanf:"system_prompt"`
	ContextMessageCount int     `koanf:"context_message_count"`
	UsePersona          bool    `koanf:"use_persona"`
	Temperature         float64 `koanf:"temperature"`
	MaxTokens           int     `koanf:"max_tokens"`
	RequestTimeout      string  `koanf:"request_timeout"`
}

type CacheConfig struct {
	TTL string `koanf:"ttl"`
}

type MergeConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Wait     string `koanf:"wait"`
	MaxCount int    `koanf:"max_count"` // 0 = unlimited, timer-only flush
}

type ModelsConfig struct {
	Default             string          `koanf:"default"`
	Fallback            string          `koanf:"fallback"`
	MaxFallbackAttempts int             `koanf:"max_fallback_attempts"`
	Registry            []ModelRegistry `koanf:"registry"`
}

// ModelRegistry names a model group and binds it to a provider.
// Model is the provider-side model id; empty means the group name is sent as-is.
type ModelRegistry struct {
	Name     string `koanf:"name"`
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
}

type StoreConfig struct {
	LockTimeout              string `koanf:"lock_timeout"`
	LockRetry                string `koanf:"lock_retry"`
	LockMaxRetry             int    `koanf:"lock_max_retry"`
	InboxSize                int    `koanf:"inbox_size"`
	TranscriptRotateMaxBytes int64  `koanf:"transcript_rotate_max_bytes"`
	DedupeTTL                string `koanf:"dedupe_ttl"`
}

type RetentionConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"`
	MaxAge   string `koanf:"max_age"`
}

type AdaptersConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
	Discord  DiscordConfig  `koanf:"discord"`
}

type SlackConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Port          int    `koanf:"port"`
	SigningSecret string `koanf:"signing_secret"`
	BotToken      string `koanf:"bot_token"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
}

type DiscordConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
}

type DaemonConfig struct {
	ShutdownTimeout        string `koanf:"shutdown_timeout"`
	HealthCheckInterval    string `koanf:"health_check_interval"`
	StartupShutdownTimeout string `koanf:"startup_shutdown_timeout"`
	PreflightTimeout       string `koanf:"preflight_timeout"`
	StaleLockTTL           string `koanf:"stale_lock_ttl"`
	WorkspacePath          string `koanf:"workspace_path"`
}

const (
	DefaultWorkspaceID           = "default"
	DefaultServerPort            = 8080
	DefaultServerLogLevel        = "info"
	DefaultServerReadTimeout     = "10s"
	DefaultServerWriteTimeout    = "10s"
	DefaultServerIdleTimeout     = "60s"
	DefaultServerShutdownTimeout = "5s"
	DefaultFilterGroupMode       = "disabled"
	DefaultJudgeModelGroup       = "judge-default"
	DefaultJudgeContextCount     = 5
	MaxJudgeContextCount         = 20
	DefaultJudgeTemperature      = 0.3
	DefaultJudgeMaxTokens        = 32000
	DefaultJudgeTimeout          = "10s"
	DefaultCacheTTL              = "300s"
	DefaultMergeWait             = "10s"
	DefaultMergeMaxCount         = 5

	DefaultJudgeSystemPrompt = "You are the reply arbiter for a chat assistant. You receive an optional persona, optional recent messages, and a message to evaluate. Decide whether the assistant should reply.\n" +
		"Reply when the message addresses the assistant directly, asks a question the assistant can help with, or clearly invites it into the conversation. Stay silent for chatter between other people, spam, or messages that need no response.\n" +
		"Respond with exactly one JSON object and nothing else: {\"should_reply\": true} or {\"should_reply\": false}"

	DefaultModelMaxFallbackAttempts      = 2
	DefaultOpenAIBaseURL                 = "https://api.openai.com/v1"
	DefaultOllamaBaseURL                 = "http://localhost:11434/v1"
	DefaultOllamaAPIKey                  = "ollama"
	DefaultStoreLockTimeout              = "30s"
	DefaultStoreLockRetry                = "100ms"
	DefaultStoreLockMaxRetry             = 300
	DefaultStoreInboxSize                = 100
	DefaultStoreTranscriptRotateMaxBytes = 10 * 1024 * 1024
	DefaultStoreDedupeTTL                = "24h"
	DefaultRetentionSchedule             = "0 3 * * *"
	DefaultRetentionMaxAge               = "720h"
	DefaultSlackPort                     = 3000
	DefaultTelegramUpdateTimeout         = 60
	DefaultDaemonShutdownTimeout         = "30s"
	DefaultDaemonHealthCheckInterval     = "30s"
	DefaultDaemonStartupShutdownTimeout  = "10s"
	DefaultDaemonPreflightTimeout        = "10s"
	DefaultDaemonStaleLockTTL            = "15m"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.port":                 DefaultServerPort,
		"server.log_level":            DefaultServerLogLevel,
		"server.read_timeout":         DefaultServerReadTimeout,
		"server.write_timeout":        DefaultServerWriteTimeout,
		"server.idle_timeout":         DefaultServerIdleTimeout,
		"server.shutdown_timeout":     DefaultServerShutdownTimeout,
		"filter.private_enabled":      true,
		"filter.group_enabled":        true,
		"filter.complete_takeover":    false,
		"filter.group_mode":           DefaultFilterGroupMode,
		"filter.group_ids":            []string{},
		"judge.model_group":           DefaultJudgeModelGroup,
		"judge.system_prompt":         DefaultJudgeSystemPrompt,
		"judge.context_message_count": DefaultJudgeContextCount,
		"judge.use_persona":           true,
		"judge.temperature":           DefaultJudgeTemperature,
		"judge.max_tokens":            DefaultJudgeMaxTokens,
		"judge.request_timeout":       DefaultJudgeTimeout,
		"cache.ttl":                   DefaultCacheTTL,
		"merge.enabled":               false,
		"merge.wait":                  DefaultMergeWait,
		"merge.max_count":             DefaultMergeMaxCount,
		"models.default":              DefaultJudgeModelGroup,
		"models.fallback":             "",
		"models.max_fallback_attempts": DefaultModelMaxFallbackAttempts,
		"models.registry": []ModelRegistry{
			{Name: DefaultJudgeModelGroup, Provider: "openai", Model: "gpt-4o-mini"},
		},
		"store.lock_timeout":                DefaultStoreLockTimeout,
		"store.lock_retry":                  DefaultStoreLockRetry,
		"store.lock_max_retry":              DefaultStoreLockMaxRetry,
		"store.inbox_size":                  DefaultStoreInboxSize,
		"store.transcript_rotate_max_bytes": DefaultStoreTranscriptRotateMaxBytes,
		"store.dedupe_ttl":                  DefaultStoreDedupeTTL,
		"retention.enabled":                 false,
		"retention.schedule":                DefaultRetentionSchedule,
		"retention.max_age":                 DefaultRetentionMaxAge,
		"adapters.slack.port":               DefaultSlackPort,
		"adapters.telegram.update_timeout":  DefaultTelegramUpdateTimeout,
		"daemon.shutdown_timeout":           DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval":      DefaultDaemonHealthCheckInterval,
		"daemon.startup_shutdown_timeout":   DefaultDaemonStartupShutdownTimeout,
		"daemon.preflight_timeout":          DefaultDaemonPreflightTimeout,
		"daemon.stale_lock_ttl":             DefaultDaemonStaleLockTTL,
		"daemon.workspace_path":             filepath.Join(os.Getenv("HOME"), ".replygate", "workspaces"),
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".replygate", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("REPLYGATE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "REPLYGATE_")), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	clampJudgeContextCount(&cfg)

	// Post-Process: Inject standard Env Vars if missing
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "anthropic" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "gemini" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}

	return &cfg, nil
}

// clampJudgeContextCount keeps the transcript window inside 0..MaxJudgeContextCount.
func clampJudgeContextCount(cfg *Config) {
	count := cfg.Judge.ContextMessageCount
	if count < 0 {
		slog.Warn("judge.context_message_count below zero, clamping", "configured", count, "clamped", 0)
		cfg.Judge.ContextMessageCount = 0
	}
	if count > MaxJudgeContextCount {
		slog.Warn("judge.context_message_count above maximum, clamping", "configured", count, "clamped", MaxJudgeContextCount)
		cfg.Judge.ContextMessageCount = MaxJudgeContextCount
	}
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	workspacePath, err := expandConfiguredPath(cfg.Daemon.WorkspacePath)
	if err != nil {
		return err
	}
	if workspacePath != "" {
		cfg.Daemon.WorkspacePath = workspacePath
	}

	return nil
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	expanded, err := pathutil.Expand(trimmed)
	if err != nil {
		return "", err
	}
	return expanded, nil
}
