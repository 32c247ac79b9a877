package merge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/miuzhaii/replygate/internal/concurrency"
	"github.com/miuzhaii/replygate/internal/message"
)

// Judge is the slice of the judgment engine the coordinator needs.
type Judge interface {
	ShouldReply(ctx context.Context, text, conversationKey string) bool
}

// Notifier carries approved batches into the agent runtime.
type Notifier interface {
	PushSystemContext(ctx context.Context, conversationKey, text string, triggerAgent bool) error
}

type Options struct {
	Wait     time.Duration // collection window
	MaxCount int           // flush early at this size, 0 = timer only
}

// Coordinator batches message bursts per conversation and judges each batch
// as one merged transcript instead of message by message. Lifecycle per
// conversation: idle, collecting, flush, idle again.
type Coordinator struct {
	judge    Judge
	notifier Notifier
	registry Registry
	locks    *concurrency.ConversationLockManager
	opts     Options

	flushCtx    context.Context
	flushCancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

func NewCoordinator(judge Judge, notifier Notifier, opts Options) *Coordinator {
	if opts.Wait <= 0 {
		opts.Wait = 10 * time.Second
	}
	if opts.MaxCount < 0 {
		opts.MaxCount = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		judge:       judge,
		notifier:    notifier,
		registry:    NewMapRegistry(),
		locks:       concurrency.NewConversationLockManager(),
		opts:        opts,
		flushCtx:    ctx,
		flushCancel: cancel,
	}
}

// Offer buffers a message into its conversation's batch. The first message
// opens the batch and starts the wait timer; reaching MaxCount cancels the
// timer and flushes immediately. Returns false only after Stop, when
// nothing is buffered anymore.
func (c *Coordinator) Offer(ctx context.Context, msg message.Message) bool {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return false
	}

	key := msg.ConversationKey

	c.locks.Lock(key)
	b, ok := c.registry.Get(key)
	if !ok {
		b = &Batch{cancel: make(chan struct{})}
		c.registry.Put(key, b)
		c.watchBatch(key, b.cancel)
		slog.Debug("Merge batch opened", "conversation", key, "wait", c.opts.Wait)
	}
	b.Messages = append(b.Messages, msg)
	count := len(b.Messages)

	full := c.opts.MaxCount > 0 && count >= c.opts.MaxCount && !b.flushing
	if full {
		b.flushing = true
		close(b.cancel)
	}
	c.locks.Unlock(key)

	if full {
		slog.Debug("Merge batch full, flushing early", "conversation", key, "count", count)
		c.flush(ctx, key, "count")
	}
	return true
}

// watchBatch waits out the collection window, then flushes. A closed cancel
// channel means the count path took over; a cancelled coordinator context
// means shutdown, where pending batches are dropped.
func (c *Coordinator) watchBatch(key string, cancel <-chan struct{}) {
	concurrency.SafeGo("merge-wait-"+key, func() {
		timer := time.NewTimer(c.opts.Wait)
		defer timer.Stop()

		select {
		case <-timer.C:
			c.flush(c.flushCtx, key, "timer")
		case <-cancel:
		case <-c.flushCtx.Done():
		}
	})
}

// flush detaches the batch under the conversation lock, so a second flush
// for the same batch finds nothing and a message arriving during the flush
// opens a fresh batch. The judgment itself runs outside the lock.
func (c *Coordinator) flush(ctx context.Context, key, trigger string) {
	c.locks.Lock(key)
	b, ok := c.registry.Detach(key)
	c.locks.Unlock(key)
	if !ok || len(b.Messages) == 0 {
		return
	}

	merged := renderBatch(b.Messages)
	slog.Info("Merge batch flushed",
		"conversation", key,
		"count", len(b.Messages),
		"trigger", trigger,
	)

	if !c.judge.ShouldReply(ctx, merged, key) {
		slog.Debug("Merged batch dropped, no reply needed", "conversation", key, "count", len(b.Messages))
		return
	}

	notice := fmt.Sprintf("%d consecutive messages were merged:\n%s", len(b.Messages), merged)
	if err := c.notifier.PushSystemContext(ctx, key, notice, true); err != nil {
		slog.Warn("Failed to push merged batch", "conversation", key, "error", err)
	}
}

// renderBatch renders buffered messages in arrival order, one line per
// message tagged with the sender.
func renderBatch(msgs []message.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("[%s(%s)] %s", m.SenderName, m.SenderID, m.Content))
	}
	return strings.Join(lines, "\n")
}

// Pending reports how many conversations hold an open batch.
func (c *Coordinator) Pending() int {
	return c.registry.Len()
}

// Stop drops all pending batches. Nothing is flushed on shutdown.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.flushCancel()

	if n := c.registry.Len(); n > 0 {
		slog.Warn("Dropping pending merge batches on shutdown", "batches", n)
	}
}
