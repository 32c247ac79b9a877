package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/miuzhaii/replygate/internal/errors"
	"github.com/miuzhaii/replygate/internal/history"
)

// Store is the slice of the history store the sweeper maintains.
type Store interface {
	BasePath() string
	ListConversations() ([]string, error)
	GetConversation(key string) (*history.ConversationMeta, error)
	ResetConversation(key string) error
}

type Options struct {
	Schedule     string        // standard 5-field cron expression
	MaxAge       time.Duration // idle age before a transcript is deleted
	TickInterval time.Duration // schedule poll granularity, defaults to a minute
}

// Sweeper deletes transcripts retention no longer wants: rotated .bak
// archives and conversations idle beyond MaxAge. Only the conversations
// directory is touched; the decision kv is out of bounds.
type Sweeper struct {
	store    Store
	schedule cron.Schedule
	maxAge   time.Duration
	tick     time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	nextRun time.Time
}

func NewSweeper(store Store, opts Options) (*Sweeper, error) {
	schedule, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse retention schedule: %w", err)
	}
	if opts.MaxAge <= 0 {
		return nil, errors.InvalidInput("retention max age must be positive")
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = time.Minute
	}

	return &Sweeper{
		store:    store,
		schedule: schedule,
		maxAge:   opts.MaxAge,
		tick:     tick,
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.nextRun = s.schedule.Next(time.Now())
	next := s.nextRun
	s.mu.Unlock()

	slog.Info("Retention sweeper started", "next_run", next.Format(time.RFC3339), "max_age", s.maxAge)
	go s.run(runCtx)
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			due := !time.Now().Before(s.nextRun)
			if due {
				s.nextRun = s.schedule.Next(time.Now())
			}
			s.mu.Unlock()

			if due {
				s.Sweep()
			}
		}
	}
}

// Sweep runs one pass immediately. Safe to call while the schedule loop is
// running.
func (s *Sweeper) Sweep() {
	start := time.Now()
	backups := s.sweepBackups()
	conversations := s.sweepIdleConversations()
	slog.Info("Retention sweep complete",
		"backups_removed", backups,
		"conversations_removed", conversations,
		"duration", time.Since(start),
	)
}

func (s *Sweeper) sweepBackups() int {
	pattern := filepath.Join(s.store.BasePath(), "conversations", "*.bak")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		slog.Error("Failed to scan transcript backups", "error", err)
		return 0
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to remove transcript backup", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}

func (s *Sweeper) sweepIdleConversations() int {
	keys, err := s.store.ListConversations()
	if err != nil {
		slog.Error("Failed to list conversations for retention", "error", err)
		return 0
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, key := range keys {
		meta, err := s.store.GetConversation(key)
		if err != nil || meta == nil {
			continue
		}
		if meta.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.store.ResetConversation(key); err != nil {
			slog.Warn("Failed to remove idle conversation", "conversation", key, "error", err)
			continue
		}
		slog.Debug("Removed idle conversation", "conversation", key, "last_active", meta.UpdatedAt)
		removed++
	}
	return removed
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	s.cancel()
	slog.Info("Retention sweeper stopped")
	return nil
}

func (s *Sweeper) Health(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return errors.Internal("retention sweeper not running")
	}
	return nil
}

// NextRun reports when the next scheduled sweep is due.
func (s *Sweeper) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}
