package adapter

import (
	"context"
	"log/slog"

	"github.com/miuzhaii/replygate/internal/errors"
	"github.com/miuzhaii/replygate/internal/message"

	"github.com/bwmarrin/discordgo"
)

type DiscordAdapter struct {
	token     string
	handler   MessageHandler
	session   *discordgo.Session
	botUserID string
}

func NewDiscordAdapter(token string, handler MessageHandler) *DiscordAdapter {
	return &DiscordAdapter{
		token:   token,
		handler: handler,
	}
}

func (d *DiscordAdapter) Name() string {
	return "discord"
}

func (d *DiscordAdapter) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return errors.Wrap(err, "failed to init discord session")
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		d.handleMessage(ctx, m)
	})

	if err := session.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord gateway")
	}
	d.session = session

	user, err := session.User("@me")
	if err != nil {
		session.Close()
		return errors.Wrap(err, "failed to fetch discord bot identity")
	}
	d.botUserID = user.ID

	slog.Info("Discord Adapter started", "user", user.Username)
	return nil
}

func (d *DiscordAdapter) Stop(ctx context.Context) error {
	if d.session == nil {
		return nil
	}
	return d.session.Close()
}

func (d *DiscordAdapter) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	// Ignore our own and other bots' messages
	if m.Author == nil || m.Author.ID == d.botUserID || m.Author.Bot {
		return
	}

	kind := message.KindGroup
	if m.GuildID == "" {
		kind = message.KindPrivate
	}

	inbound := message.New("discord", kind, m.ChannelID, m.Author.ID, displayName(m), m.Content)
	inbound.DeliveryID = m.ID

	if d.handler != nil {
		if err := d.handler(ctx, inbound); err != nil {
			slog.Error("Failed to handle Discord message", "channel", m.ChannelID, "error", err)
		}
	}
}

// displayName picks the best available author name: server nickname, then
// global display name, then username.
func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func (d *DiscordAdapter) Health(ctx context.Context) error {
	if d.session == nil {
		return errors.Transient("Discord session not initialized")
	}
	if d.session.State == nil || d.session.State.User == nil {
		return errors.Transient("Discord session not connected")
	}
	return nil
}
