package message

import "testing"

func TestNewAppliesSenderFallback(t *testing.T) {
	cases := []struct {
		name       string
		senderID   string
		senderName string
		want       string
	}{
		{name: "display name wins", senderID: "U123", senderName: "alice", want: "alice"},
		{name: "falls back to sender id", senderID: "U123", senderName: "", want: "U123"},
		{name: "whitespace name treated as empty", senderID: "U123", senderName: "   ", want: "U123"},
		{name: "unknown when both empty", senderID: "", senderName: "", want: UnknownSender},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := New("telegram", KindPrivate, "42", tc.senderID, tc.senderName, "hi")
			if msg.SenderName != tc.want {
				t.Fatalf("sender name = %q, want %q", msg.SenderName, tc.want)
			}
		})
	}
}

func TestNewBuildsConversationKey(t *testing.T) {
	msg := New("slack", KindGroup, "C999", "U1", "bob", "hello")
	if msg.ConversationKey != "group_C999" {
		t.Fatalf("conversation key = %q, want group_C999", msg.ConversationKey)
	}
	if msg.ID == "" {
		t.Fatal("expected generated message id")
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestSplitKey(t *testing.T) {
	kind, id, ok := SplitKey("group_123456")
	if !ok || kind != KindGroup || id != "123456" {
		t.Fatalf("SplitKey(group_123456) = %v %q %v", kind, id, ok)
	}

	kind, id, ok = SplitKey("private_78910")
	if !ok || kind != KindPrivate || id != "78910" {
		t.Fatalf("SplitKey(private_78910) = %v %q %v", kind, id, ok)
	}

	if _, _, ok := SplitKey("channel_1"); ok {
		t.Fatal("expected unknown prefix to be rejected")
	}
	if _, _, ok := SplitKey(""); ok {
		t.Fatal("expected empty key to be rejected")
	}
}

func TestSplitKeyRoundTrip(t *testing.T) {
	key := Key(KindGroup, "id_with_underscores")
	kind, id, ok := SplitKey(key)
	if !ok || kind != KindGroup || id != "id_with_underscores" {
		t.Fatalf("round trip = %v %q %v", kind, id, ok)
	}
}
