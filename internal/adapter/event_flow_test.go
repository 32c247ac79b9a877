package adapter

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/miuzhaii/replygate/internal/message"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type capturingHandler struct {
	messages []message.Message
}

func (h *capturingHandler) handle(ctx context.Context, msg message.Message) error {
	h.messages = append(h.messages, msg)
	return nil
}

func (h *capturingHandler) last(t *testing.T) message.Message {
	t.Helper()
	if len(h.messages) == 0 {
		t.Fatal("No message captured")
	}
	return h.messages[len(h.messages)-1]
}

func TestTelegramAdapterNormalizesPrivateChat(t *testing.T) {
	h := &capturingHandler{}
	adapter := NewTelegramAdapter("test-token", h.handle, 1)

	adapter.handleUpdate(context.Background(), tgbotapi.Update{
		UpdateID: 99,
		Message: &tgbotapi.Message{
			MessageID: 123,
			Text:      "hello from telegram",
			Chat:      &tgbotapi.Chat{ID: 456, Type: "private"},
			From:      &tgbotapi.User{ID: 789, UserName: "alice_tg", FirstName: "Alice"},
		},
	})

	got := h.last(t)
	if got.Source != "telegram" {
		t.Fatalf("Source = %q, want telegram", got.Source)
	}
	if got.Kind != message.KindPrivate {
		t.Fatalf("Kind = %q, want private", got.Kind)
	}
	if got.ConversationKey != "private_456" {
		t.Fatalf("ConversationKey = %q, want private_456", got.ConversationKey)
	}
	if got.SenderID != "789" {
		t.Fatalf("SenderID = %q, want 789", got.SenderID)
	}
	if got.SenderName != "Alice" {
		t.Fatalf("SenderName = %q, want Alice", got.SenderName)
	}
	if got.Content != "hello from telegram" {
		t.Fatalf("Content = %q", got.Content)
	}
	if got.DeliveryID != "99" {
		t.Fatalf("DeliveryID = %q, want update id 99", got.DeliveryID)
	}
}

func TestTelegramAdapterNormalizesGroupChat(t *testing.T) {
	h := &capturingHandler{}
	adapter := NewTelegramAdapter("test-token", h.handle, 1)

	adapter.handleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: "group chatter",
			Chat: &tgbotapi.Chat{ID: -100200, Type: "supergroup"},
			From: &tgbotapi.User{ID: 789, UserName: "alice_tg"},
		},
	})

	got := h.last(t)
	if got.Kind != message.KindGroup {
		t.Fatalf("Kind = %q, want group", got.Kind)
	}
	if got.ConversationKey != "group_-100200" {
		t.Fatalf("ConversationKey = %q, want group_-100200", got.ConversationKey)
	}
	if got.SenderName != "alice_tg" {
		t.Fatalf("SenderName = %q, want username fallback alice_tg", got.SenderName)
	}
}

func TestTelegramAdapterIgnoresBots(t *testing.T) {
	h := &capturingHandler{}
	adapter := NewTelegramAdapter("test-token", h.handle, 1)

	adapter.handleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: "beep",
			Chat: &tgbotapi.Chat{ID: 1, Type: "private"},
			From: &tgbotapi.User{ID: 2, UserName: "somebot", IsBot: true},
		},
	})

	if len(h.messages) != 0 {
		t.Fatalf("Bot messages must be ignored, captured %d", len(h.messages))
	}
}

func TestSlackAdapterNormalizesEvent(t *testing.T) {
	secret := "test-signing-secret"
	h := &capturingHandler{}
	adapter := NewSlackAdapter(0, secret, "xoxb-test", h.handle)

	body := []byte(`{"type":"event_callback","event":{"type":"message","user":"U123","text":"hello from slack","channel":"D123","channel_type":"im","ts":"1710000000.000100"}}`)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	base := "v0:" + ts + ":" + string(body)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(base))
	sig := "v0=" + hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", sig)

	rr := httptest.NewRecorder()
	adapter.handleEvents(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	got := h.last(t)
	if got.Source != "slack" {
		t.Fatalf("Source = %q, want slack", got.Source)
	}
	if got.Kind != message.KindPrivate {
		t.Fatalf("Kind = %q, want private for channel_type im", got.Kind)
	}
	if got.ConversationKey != "private_D123" {
		t.Fatalf("ConversationKey = %q, want private_D123", got.ConversationKey)
	}
	if got.SenderID != "U123" {
		t.Fatalf("SenderID = %q, want U123", got.SenderID)
	}
	if got.SenderName != "U123" {
		t.Fatalf("SenderName = %q, want sender id fallback U123", got.SenderName)
	}
	if got.Content != "hello from slack" {
		t.Fatalf("Content = %q", got.Content)
	}
	if got.DeliveryID != "D123:1710000000.000100" {
		t.Fatalf("DeliveryID = %q, want channel-scoped ts", got.DeliveryID)
	}
}

func TestSlackAdapterRejectsBadSignature(t *testing.T) {
	h := &capturingHandler{}
	adapter := NewSlackAdapter(0, "real-secret", "xoxb-test", h.handle)

	body := []byte(`{"type":"event_callback"}`)
	req := httptest.NewRequest(http.MethodPost, "/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	rr := httptest.NewRecorder()
	adapter.handleEvents(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if len(h.messages) != 0 {
		t.Fatal("Unverified request must not reach the handler")
	}
}

func TestDiscordAdapterNormalizesMessages(t *testing.T) {
	h := &capturingHandler{}
	adapter := NewDiscordAdapter("test-token", h.handle)
	adapter.botUserID = "BOT1"

	adapter.handleMessage(context.Background(), &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "M42",
			ChannelID: "C555",
			GuildID:   "G1",
			Content:   "hello from discord",
			Author:    &discordgo.User{ID: "U9", Username: "alice", GlobalName: "Alice A"},
		},
	})

	got := h.last(t)
	if got.Source != "discord" {
		t.Fatalf("Source = %q, want discord", got.Source)
	}
	if got.Kind != message.KindGroup {
		t.Fatalf("Kind = %q, want group for guild messages", got.Kind)
	}
	if got.SenderName != "Alice A" {
		t.Fatalf("SenderName = %q, want global display name", got.SenderName)
	}
	if got.DeliveryID != "M42" {
		t.Fatalf("DeliveryID = %q, want message id M42", got.DeliveryID)
	}

	// DMs have no guild id.
	adapter.handleMessage(context.Background(), &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: "D777",
			Content:   "dm",
			Author:    &discordgo.User{ID: "U9", Username: "alice"},
		},
	})
	if h.last(t).Kind != message.KindPrivate {
		t.Fatal("Guild-less message should map to private")
	}

	// Own and bot messages are dropped.
	before := len(h.messages)
	adapter.handleMessage(context.Background(), &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: "C555",
			Content:   "self echo",
			Author:    &discordgo.User{ID: "BOT1", Username: "replygate"},
		},
	})
	adapter.handleMessage(context.Background(), &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: "C555",
			Content:   "other bot",
			Author:    &discordgo.User{ID: "U10", Username: "otherbot", Bot: true},
		},
	})
	if len(h.messages) != before {
		t.Fatal("Bot and self messages must be ignored")
	}
}
