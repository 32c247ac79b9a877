package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, cfg RuntimeConfig) *Store {
	t.Helper()
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 2 * time.Second
	}
	if cfg.LockRetry <= 0 {
		cfg.LockRetry = 10 * time.Millisecond
	}
	if cfg.LockMaxRetry <= 0 {
		cfg.LockMaxRetry = 5
	}

	s, err := NewStore("test-ws", t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestRecordAndReadRecent(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{})
	key := "group_123"

	for _, content := range []string{"first", "second", "third"} {
		if err := s.RecordMessage(key, Entry{Role: RoleUser, SenderName: "alice", Content: content}); err != nil {
			t.Fatalf("record message: %v", err)
		}
	}

	entries, err := s.RecentMessages(key, 2)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Content != "third" || entries[1].Content != "second" {
		t.Fatalf("expected newest first, got %q then %q", entries[0].Content, entries[1].Content)
	}
	if entries[0].ID == "" {
		t.Fatal("expected generated entry id")
	}
}

func TestRecentMessagesMissingConversation(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{})

	entries, err := s.RecentMessages("private_404", 5)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty result, got %d entries", len(entries))
	}
}

func TestMarkRecalledHidesFromRecent(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{})
	key := "group_123"

	for _, content := range []string{"keep-a", "withdraw", "keep-b"} {
		if err := s.RecordMessage(key, Entry{Role: RoleUser, Content: content}); err != nil {
			t.Fatalf("record message: %v", err)
		}
	}

	all, err := s.RecentMessages(key, 0)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	var target string
	for _, e := range all {
		if e.Content == "withdraw" {
			target = e.ID
		}
	}
	if target == "" {
		t.Fatal("did not find entry to recall")
	}

	if err := s.MarkRecalled(key, target); err != nil {
		t.Fatalf("mark recalled: %v", err)
	}

	entries, err := s.RecentMessages(key, 0)
	if err != nil {
		t.Fatalf("recent messages after recall: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after recall, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Content == "withdraw" {
			t.Fatal("recalled entry still visible")
		}
	}
}

func TestMarkRecalledUnknownMessage(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{})
	key := "group_123"

	if err := s.RecordMessage(key, Entry{Content: "hello"}); err != nil {
		t.Fatalf("record message: %v", err)
	}
	if err := s.MarkRecalled(key, "no-such-id"); err == nil {
		t.Fatal("expected error for unknown message id")
	}
	if err := s.MarkRecalled("private_404", "x"); err == nil {
		t.Fatal("expected error for unknown conversation")
	}
}

func TestResetConversation(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{})
	key := "private_42"

	if err := s.RecordMessage(key, Entry{Content: "hello"}); err != nil {
		t.Fatalf("record message: %v", err)
	}
	if err := s.ResetConversation(key); err != nil {
		t.Fatalf("reset conversation: %v", err)
	}

	entries, err := s.RecentMessages(key, 0)
	if err != nil {
		t.Fatalf("recent messages: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty transcript after reset, got %d", len(entries))
	}

	meta, err := s.GetConversation(key)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if meta != nil {
		t.Fatal("expected conversation removed from index")
	}
}

func TestConversationIndexTracksActivity(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{})
	key := "group_777"

	for i := 0; i < 2; i++ {
		if err := s.RecordMessage(key, Entry{Content: "hi"}); err != nil {
			t.Fatalf("record message: %v", err)
		}
	}

	meta, err := s.GetConversation(key)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if meta == nil {
		t.Fatal("expected conversation meta")
	}
	if meta.MessageCount != 2 {
		t.Fatalf("message count = %d, want 2", meta.MessageCount)
	}
	if meta.Kind != "group" || meta.PlatformID != "777" {
		t.Fatalf("meta kind/platform = %q/%q", meta.Kind, meta.PlatformID)
	}

	keys, err := s.ListConversations()
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Fatalf("list conversations = %v", keys)
	}
}

func TestPersonaLifecycle(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{})

	if err := s.SavePersona(Persona{ID: "bravo", Name: "Bravo", Content: "persona b"}); err != nil {
		t.Fatalf("save persona: %v", err)
	}
	if err := s.SavePersona(Persona{ID: "alpha", Name: "Alpha", Content: "persona a"}); err != nil {
		t.Fatalf("save persona: %v", err)
	}

	got, err := s.GetPersona("alpha")
	if err != nil {
		t.Fatalf("get persona: %v", err)
	}
	if got == nil || got.Name != "Alpha" {
		t.Fatalf("get persona = %+v", got)
	}

	list, err := s.ListPersonas()
	if err != nil {
		t.Fatalf("list personas: %v", err)
	}
	if len(list) != 2 || list[0].ID != "alpha" || list[1].ID != "bravo" {
		t.Fatalf("expected sorted personas, got %+v", list)
	}

	if err := s.SetDefaultPersona("missing"); err == nil {
		t.Fatal("expected error setting unknown default persona")
	}
	if err := s.SetDefaultPersona("alpha"); err != nil {
		t.Fatalf("set default persona: %v", err)
	}
	defaultID, err := s.DefaultPersonaID()
	if err != nil {
		t.Fatalf("default persona id: %v", err)
	}
	if defaultID != "alpha" {
		t.Fatalf("default persona id = %q, want alpha", defaultID)
	}

	if err := s.DeletePersona("alpha"); err != nil {
		t.Fatalf("delete persona: %v", err)
	}
	defaultID, err = s.DefaultPersonaID()
	if err != nil {
		t.Fatalf("default persona id: %v", err)
	}
	if defaultID != "" {
		t.Fatalf("expected default cleared after delete, got %q", defaultID)
	}
	persona, err := s.EffectivePersona("group_1")
	if err != nil {
		t.Fatalf("effective persona: %v", err)
	}
	if persona != nil {
		t.Fatalf("expected default cleared with persona, got %+v", persona)
	}
}

func TestEffectivePersonaResolution(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{})

	if err := s.SavePersona(Persona{ID: "fallback", Name: "Fallback", Content: "default persona"}); err != nil {
		t.Fatalf("save persona: %v", err)
	}
	if err := s.SavePersona(Persona{ID: "bound", Name: "Bound", Content: "channel persona"}); err != nil {
		t.Fatalf("save persona: %v", err)
	}
	if err := s.SetDefaultPersona("fallback"); err != nil {
		t.Fatalf("set default persona: %v", err)
	}
	if err := s.BindChannel("group_9", "bound"); err != nil {
		t.Fatalf("bind channel: %v", err)
	}

	persona, err := s.EffectivePersona("group_9")
	if err != nil {
		t.Fatalf("effective persona: %v", err)
	}
	if persona == nil || persona.ID != "bound" {
		t.Fatalf("expected bound persona, got %+v", persona)
	}

	persona, err = s.EffectivePersona("group_other")
	if err != nil {
		t.Fatalf("effective persona: %v", err)
	}
	if persona == nil || persona.ID != "fallback" {
		t.Fatalf("expected default persona, got %+v", persona)
	}

	// Unbind falls back to the default.
	if err := s.BindChannel("group_9", ""); err != nil {
		t.Fatalf("unbind channel: %v", err)
	}
	persona, err = s.EffectivePersona("group_9")
	if err != nil {
		t.Fatalf("effective persona: %v", err)
	}
	if persona == nil || persona.ID != "fallback" {
		t.Fatalf("expected default after unbind, got %+v", persona)
	}
}

func TestBindChannelUnknownPersona(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{})
	if err := s.BindChannel("group_9", "ghost"); err == nil {
		t.Fatal("expected error binding unknown persona")
	}
}

func TestKVRoundTripAndPersistence(t *testing.T) {
	root := t.TempDir()
	cfg := RuntimeConfig{LockTimeout: 2 * time.Second, LockRetry: 10 * time.Millisecond, LockMaxRetry: 5}

	s, err := NewStore("test-ws", root, cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.Start()

	if _, ok := s.KVGet("decision_abc"); ok {
		t.Fatal("expected miss on empty kv")
	}
	if err := s.KVSet("decision_abc", `{"v":true}`); err != nil {
		t.Fatalf("kv set: %v", err)
	}
	if value, ok := s.KVGet("decision_abc"); !ok || value != `{"v":true}` {
		t.Fatalf("kv get = %q, %v", value, ok)
	}
	s.Stop()

	// Records survive a restart.
	s2, err := NewStore("test-ws", root, cfg)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	s2.Start()
	defer s2.Stop()

	if value, ok := s2.KVGet("decision_abc"); !ok || value != `{"v":true}` {
		t.Fatalf("kv get after restart = %q, %v", value, ok)
	}
	if err := s2.KVDelete("decision_abc"); err != nil {
		t.Fatalf("kv delete: %v", err)
	}
	if _, ok := s2.KVGet("decision_abc"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestDeliveryDedupe(t *testing.T) {
	root := t.TempDir()
	cfg := RuntimeConfig{LockTimeout: 2 * time.Second, LockRetry: 10 * time.Millisecond, LockMaxRetry: 5}

	s, err := NewStore("test-ws", root, cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.Start()

	if s.CheckAndMarkDelivery("telegram:100045", time.Minute) {
		t.Fatal("first delivery must not be flagged as duplicate")
	}
	if !s.CheckAndMarkDelivery("telegram:100045", time.Minute) {
		t.Fatal("repeated delivery key must be flagged")
	}
	if s.CheckAndMarkDelivery("telegram:100046", time.Minute) {
		t.Fatal("different delivery key must pass")
	}
	if err := s.SaveDeliveriesSync(); err != nil {
		t.Fatalf("save deliveries: %v", err)
	}
	s.Stop()

	// Seen keys survive a restart.
	s2, err := NewStore("test-ws", root, cfg)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	s2.Start()
	defer s2.Stop()

	if !s2.CheckAndMarkDelivery("telegram:100045", time.Minute) {
		t.Fatal("delivery key should survive a restart")
	}
}

func TestTranscriptRotation(t *testing.T) {
	s := newTestStore(t, RuntimeConfig{TranscriptRotateMaxBytes: 256})
	key := "group_rotate"

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	for i := 0; i < 3; i++ {
		if err := s.RecordMessage(key, Entry{Content: string(long)}); err != nil {
			t.Fatalf("record message: %v", err)
		}
	}

	path := filepath.Join(s.BasePath(), "conversations", key+".jsonl")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat transcript: %v", err)
	}
	if info.Size() > 512 {
		t.Errorf("transcript should have been rotated, size=%d", info.Size())
	}

	matches, err := filepath.Glob(path + ".*.bak")
	if err != nil {
		t.Fatalf("glob backups: %v", err)
	}
	if len(matches) == 0 {
		t.Error("expected rotated backup file")
	}
}
