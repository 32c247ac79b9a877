package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miuzhaii/replygate/internal/history"
)

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.NewStore("retention-test", t.TempDir(), history.RuntimeConfig{
		LockTimeout:  2 * time.Second,
		LockRetry:    10 * time.Millisecond,
		LockMaxRetry: 5,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestNewSweeperValidation(t *testing.T) {
	store := newTestStore(t)

	if _, err := NewSweeper(store, Options{Schedule: "not a cron", MaxAge: time.Hour}); err == nil {
		t.Error("Invalid schedule should be rejected")
	}
	if _, err := NewSweeper(store, Options{Schedule: "0 3 * * *", MaxAge: 0}); err == nil {
		t.Error("Non-positive max age should be rejected")
	}
	if _, err := NewSweeper(store, Options{Schedule: "0 3 * * *", MaxAge: time.Hour}); err != nil {
		t.Errorf("Valid options rejected: %v", err)
	}
}

func TestSweepRemovesIdleConversations(t *testing.T) {
	store := newTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	if err := store.RecordMessage("group_old", history.Entry{Timestamp: old, SenderName: "alice", Content: "stale"}); err != nil {
		t.Fatalf("record old: %v", err)
	}
	if err := store.RecordMessage("group_fresh", history.Entry{SenderName: "bob", Content: "recent"}); err != nil {
		t.Fatalf("record fresh: %v", err)
	}

	sweeper, err := NewSweeper(store, Options{Schedule: "0 3 * * *", MaxAge: 24 * time.Hour})
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	sweeper.Sweep()

	keys, err := store.ListConversations()
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(keys) != 1 || keys[0] != "group_fresh" {
		t.Errorf("Conversations after sweep = %v, want only group_fresh", keys)
	}
}

func TestSweepRemovesOldBackups(t *testing.T) {
	store := newTestStore(t)

	convDir := filepath.Join(store.BasePath(), "conversations")
	oldBak := filepath.Join(convDir, "group_1.jsonl.20240101000000.bak")
	freshBak := filepath.Join(convDir, "group_2.jsonl.20991231000000.bak")
	for _, p := range []string{oldBak, freshBak} {
		if err := os.WriteFile(p, []byte("{}\n"), 0644); err != nil {
			t.Fatalf("write backup: %v", err)
		}
	}
	past := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(oldBak, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	sweeper, err := NewSweeper(store, Options{Schedule: "0 3 * * *", MaxAge: 24 * time.Hour})
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	sweeper.Sweep()

	if _, err := os.Stat(oldBak); !os.IsNotExist(err) {
		t.Error("Old backup should be removed")
	}
	if _, err := os.Stat(freshBak); err != nil {
		t.Error("Fresh backup should survive the sweep")
	}
}

func TestSweepNeverTouchesDecisionKV(t *testing.T) {
	store := newTestStore(t)

	if err := store.KVSet("decision_abc", `{"v":true,"ts":1}`); err != nil {
		t.Fatalf("kv set: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := store.RecordMessage("group_old", history.Entry{Timestamp: old, Content: "stale"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	sweeper, err := NewSweeper(store, Options{Schedule: "0 3 * * *", MaxAge: 24 * time.Hour})
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	sweeper.Sweep()

	if _, ok := store.KVGet("decision_abc"); !ok {
		t.Error("Sweep must leave the decision kv alone")
	}
}

func TestSweeperLifecycle(t *testing.T) {
	store := newTestStore(t)
	sweeper, err := NewSweeper(store, Options{Schedule: "0 3 * * *", MaxAge: time.Hour, TickInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}

	ctx := context.Background()
	if err := sweeper.Health(ctx); err == nil {
		t.Error("Health should fail before Start")
	}

	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sweeper.Health(ctx); err != nil {
		t.Errorf("Health after start: %v", err)
	}
	if sweeper.NextRun().IsZero() {
		t.Error("NextRun should be scheduled after Start")
	}

	if err := sweeper.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := sweeper.Health(ctx); err == nil {
		t.Error("Health should fail after Stop")
	}
}
