package merge

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miuzhaii/replygate/internal/message"
)

type stubJudge struct {
	mu      sync.Mutex
	calls   []string
	keys    []string
	verdict bool
	called  chan struct{}
}

func newStubJudge(verdict bool) *stubJudge {
	return &stubJudge{verdict: verdict, called: make(chan struct{}, 16)}
}

func (j *stubJudge) ShouldReply(ctx context.Context, text, conversationKey string) bool {
	j.mu.Lock()
	j.calls = append(j.calls, text)
	j.keys = append(j.keys, conversationKey)
	j.mu.Unlock()
	j.called <- struct{}{}
	return j.verdict
}

func (j *stubJudge) snapshot() ([]string, []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...), append([]string(nil), j.keys...)
}

type recordedPush struct {
	key     string
	text    string
	trigger bool
}

type stubNotifier struct {
	mu     sync.Mutex
	pushes []recordedPush
}

func (n *stubNotifier) PushSystemContext(ctx context.Context, conversationKey, text string, triggerAgent bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, recordedPush{key: conversationKey, text: text, trigger: triggerAgent})
	return nil
}

func (n *stubNotifier) snapshot() []recordedPush {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedPush(nil), n.pushes...)
}

func waitForJudgment(t *testing.T, j *stubJudge) {
	t.Helper()
	select {
	case <-j.called:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a judgment")
	}
}

func groupMsg(chatID, senderID, senderName, content string) message.Message {
	return message.New("test", message.KindGroup, chatID, senderID, senderName, content)
}

func TestCoordinatorCountFlushExactlyOnce(t *testing.T) {
	judge := newStubJudge(true)
	notifier := &stubNotifier{}
	c := NewCoordinator(judge, notifier, Options{Wait: 30 * time.Millisecond, MaxCount: 3})
	defer c.Stop()

	ctx := context.Background()
	for _, m := range []message.Message{
		groupMsg("1", "u1", "alice", "a"),
		groupMsg("1", "u2", "bob", "b then?"),
		groupMsg("1", "u1", "alice", "c"),
	} {
		if !c.Offer(ctx, m) {
			t.Fatal("Offer should buffer while running")
		}
	}

	// The count path flushes inside the third Offer. Wait past the timer
	// to prove the raced timer does not flush the same batch again.
	time.Sleep(120 * time.Millisecond)

	calls, keys := judge.snapshot()
	if len(calls) != 1 {
		t.Fatalf("Expected exactly 1 judgment, got %d", len(calls))
	}
	want := "[alice(u1)] a\n[bob(u2)] b then?\n[alice(u1)] c"
	if calls[0] != want {
		t.Errorf("Merged transcript = %q, want %q", calls[0], want)
	}
	if keys[0] != "group_1" {
		t.Errorf("Judged conversation = %q, want group_1", keys[0])
	}
	if c.Pending() != 0 {
		t.Errorf("Pending batches = %d after flush, want 0", c.Pending())
	}
}

func TestCoordinatorTimerFlush(t *testing.T) {
	judge := newStubJudge(true)
	notifier := &stubNotifier{}
	c := NewCoordinator(judge, notifier, Options{Wait: 30 * time.Millisecond, MaxCount: 0})
	defer c.Stop()

	ctx := context.Background()
	c.Offer(ctx, groupMsg("1", "u1", "alice", "first"))
	c.Offer(ctx, groupMsg("1", "u2", "bob", "second"))

	waitForJudgment(t, judge)

	calls, _ := judge.snapshot()
	if len(calls) != 1 {
		t.Fatalf("Expected exactly 1 judgment, got %d", len(calls))
	}
	want := "[alice(u1)] first\n[bob(u2)] second"
	if calls[0] != want {
		t.Errorf("Merged transcript = %q, want %q", calls[0], want)
	}
}

func TestCoordinatorEmitsApprovedBatch(t *testing.T) {
	judge := newStubJudge(true)
	notifier := &stubNotifier{}
	c := NewCoordinator(judge, notifier, Options{Wait: time.Hour, MaxCount: 2})
	defer c.Stop()

	ctx := context.Background()
	c.Offer(ctx, groupMsg("7", "u1", "alice", "hi"))
	c.Offer(ctx, groupMsg("7", "u2", "bob", "are you there?"))

	pushes := notifier.snapshot()
	if len(pushes) != 1 {
		t.Fatalf("Expected 1 system-context push, got %d", len(pushes))
	}
	p := pushes[0]
	if p.key != "group_7" {
		t.Errorf("Push conversation = %q, want group_7", p.key)
	}
	if !p.trigger {
		t.Error("Approved batch must trigger the agent")
	}
	if !strings.Contains(p.text, "2 consecutive messages were merged:") {
		t.Errorf("Push text missing notice: %q", p.text)
	}
	if !strings.Contains(p.text, "[alice(u1)] hi\n[bob(u2)] are you there?") {
		t.Errorf("Push text missing merged transcript: %q", p.text)
	}
}

func TestCoordinatorDropsRejectedBatch(t *testing.T) {
	judge := newStubJudge(false)
	notifier := &stubNotifier{}
	c := NewCoordinator(judge, notifier, Options{Wait: time.Hour, MaxCount: 1})
	defer c.Stop()

	c.Offer(context.Background(), groupMsg("1", "u1", "alice", "spam"))

	calls, _ := judge.snapshot()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 judgment, got %d", len(calls))
	}
	if pushes := notifier.snapshot(); len(pushes) != 0 {
		t.Errorf("Rejected batch must not be pushed, got %d pushes", len(pushes))
	}
}

func TestCoordinatorStopDropsPending(t *testing.T) {
	judge := newStubJudge(true)
	notifier := &stubNotifier{}
	c := NewCoordinator(judge, notifier, Options{Wait: 40 * time.Millisecond, MaxCount: 0})

	ctx := context.Background()
	c.Offer(ctx, groupMsg("1", "u1", "alice", "pending"))
	c.Stop()

	time.Sleep(120 * time.Millisecond)

	if calls, _ := judge.snapshot(); len(calls) != 0 {
		t.Errorf("Stop must not flush, got %d judgments", len(calls))
	}
	if c.Offer(ctx, groupMsg("1", "u1", "alice", "late")) {
		t.Error("Offer after Stop should report not buffered")
	}
}

func TestCoordinatorIndependentConversations(t *testing.T) {
	judge := newStubJudge(true)
	notifier := &stubNotifier{}
	c := NewCoordinator(judge, notifier, Options{Wait: time.Hour, MaxCount: 2})
	defer c.Stop()

	ctx := context.Background()
	c.Offer(ctx, groupMsg("1", "u1", "alice", "a1"))
	c.Offer(ctx, groupMsg("2", "u2", "bob", "b1"))
	if c.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2 open batches", c.Pending())
	}

	c.Offer(ctx, groupMsg("1", "u1", "alice", "a2"))
	c.Offer(ctx, groupMsg("2", "u2", "bob", "b2"))

	_, keys := judge.snapshot()
	if len(keys) != 2 {
		t.Fatalf("Expected 2 judgments, got %d", len(keys))
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["group_1"] || !seen["group_2"] {
		t.Errorf("Judged conversations = %v, want group_1 and group_2", keys)
	}
}
