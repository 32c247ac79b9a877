package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/miuzhaii/replygate/internal/config"
	"github.com/miuzhaii/replygate/internal/errors"
	"github.com/miuzhaii/replygate/internal/message"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramAdapter struct {
	token         string
	updateTimeout int
	handler       MessageHandler
	bot           *tgbotapi.BotAPI
	updates       tgbotapi.UpdatesChannel
}

func NewTelegramAdapter(token string, handler MessageHandler, updateTimeout int) *TelegramAdapter {
	if updateTimeout <= 0 {
		updateTimeout = config.DefaultTelegramUpdateTimeout
	}
	return &TelegramAdapter{
		token:         token,
		updateTimeout: updateTimeout,
		handler:       handler,
	}
}

func (t *TelegramAdapter) Name() string {
	return "telegram"
}

func (t *TelegramAdapter) Start(ctx context.Context) error {
	var err error
	t.bot, err = tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return errors.Wrap(err, "failed to init telegram bot")
	}

	slog.Info("Telegram Adapter started", "user", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout

	t.updates = t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-t.updates:
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *TelegramAdapter) Stop(ctx context.Context) error {
	return nil
}

func (t *TelegramAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	kind := message.KindGroup
	if msg.Chat.IsPrivate() {
		kind = message.KindPrivate
	}

	var senderID, senderName string
	if msg.From != nil {
		senderID = fmt.Sprintf("%d", msg.From.ID)
		senderName = strings.TrimSpace(strings.TrimSpace(msg.From.FirstName) + " " + strings.TrimSpace(msg.From.LastName))
		if senderName == "" {
			senderName = msg.From.UserName
		}
	}

	chatID := fmt.Sprintf("%d", msg.Chat.ID)
	inbound := message.New("telegram", kind, chatID, senderID, senderName, msg.Text)
	// UpdateID is unique per bot and survives long-poll redelivery.
	inbound.DeliveryID = fmt.Sprintf("%d", update.UpdateID)

	if t.handler != nil {
		if err := t.handler(ctx, inbound); err != nil {
			slog.Error("Failed to handle Telegram message", "chat_id", chatID, "error", err)
		}
	}
}

func (t *TelegramAdapter) Health(ctx context.Context) error {
	if t.bot == nil {
		return errors.Transient("Telegram bot not initialized")
	}

	_, err := t.bot.GetMe()
	if err != nil {
		return errors.Transient("Telegram connection failed: " + err.Error())
	}

	return nil
}
