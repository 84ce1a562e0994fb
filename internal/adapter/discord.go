package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/bwmarrin/discordgo"

	"brobbot/internal/domain"
)

const (
	discordMaxMsgLen = 2000
)

// discordAPI is the part of *discordgo.Session the transport uses.
type discordAPI interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Discord implements domain.Transport for a Discord bot.
type Discord struct {
	token     string
	guildID   string
	robotName string
	api       discordAPI
	logger    *slog.Logger
}

// DiscordConfig configures the Discord adapter.
type DiscordConfig struct {
	Token     string
	GuildID   string
	RobotName string
	Logger    *slog.Logger
}

// NewDiscord creates a new Discord adapter.
func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Discord{
		token:     cfg.Token,
		guildID:   cfg.GuildID,
		robotName: cfg.RobotName,
		logger:    cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Run connects to Discord using a bot token and publishes messages until ctx
// is cancelled.
func (d *Discord) Run(ctx context.Context, bus domain.MessageBus) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if msg := d.inbound(s.State.User.ID, m); msg != nil {
			bus.Publish(msg)
		}
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.api = session

	d.logger.Info("discord bot connected", "user", session.State.User.Username)

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

func (d *Discord) inbound(selfID string, m *discordgo.MessageCreate) *domain.InboundMessage {
	if m.Author == nil || m.Author.ID == selfID || m.Author.Bot {
		return nil
	}
	// If guildID is set, filter messages.
	if d.guildID != "" && m.GuildID != d.guildID {
		return nil
	}

	mention := regexp.MustCompile(`^<@!?` + regexp.QuoteMeta(selfID) + `>`)
	text := addressAs(m.Content, mention, d.robotName)

	d.logger.Info("discord message received",
		"author", m.Author.Username,
		"channel_id", m.ChannelID,
		"content_len", len(text),
	)

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &domain.InboundMessage{
		ID:        m.ID,
		Adapter:   d.Name(),
		Room:      m.ChannelID,
		User:      domain.User{ID: m.Author.ID, Name: m.Author.Username, Room: m.ChannelID},
		Text:      text,
		Timestamp: ts,
	}
}

func (d *Discord) Send(ctx context.Context, env domain.Envelope, texts []string) error {
	return d.sendAll(ctx, env, texts)
}

func (d *Discord) Emote(ctx context.Context, env domain.Envelope, texts []string) error {
	return d.sendAll(ctx, env, wrapEach("*", texts))
}

func (d *Discord) Reply(ctx context.Context, env domain.Envelope, texts []string) error {
	return d.sendAll(ctx, env, prefixEach("<@"+env.User.ID+"> ", texts))
}

func (d *Discord) Play(ctx context.Context, env domain.Envelope, texts []string) error {
	return d.sendAll(ctx, env, prefixEach("🔊 ", texts))
}

// Topic sets the channel topic; the last text wins.
func (d *Discord) Topic(ctx context.Context, env domain.Envelope, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	if d.api == nil {
		return fmt.Errorf("discord: not connected")
	}
	if _, err := d.api.ChannelEdit(env.Room, &discordgo.ChannelEdit{Topic: texts[len(texts)-1]}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord topic: %w", err)
	}
	return nil
}

// Locked sends with embeds suppressed so links are not unfurled into
// previews other services may cache.
func (d *Discord) Locked(ctx context.Context, env domain.Envelope, texts []string) error {
	if d.api == nil {
		return fmt.Errorf("discord: not connected")
	}
	for _, text := range texts {
		for _, chunk := range splitMessage(text, discordMaxMsgLen) {
			data := &discordgo.MessageSend{Content: chunk, Flags: discordgo.MessageFlagsSuppressEmbeds}
			if _, err := d.api.ChannelMessageSendComplex(env.Room, data, discordgo.WithContext(ctx)); err != nil {
				return fmt.Errorf("discord locked: %w", err)
			}
		}
	}
	return nil
}

func (d *Discord) sendAll(ctx context.Context, env domain.Envelope, texts []string) error {
	if d.api == nil {
		return fmt.Errorf("discord: not connected")
	}
	for _, text := range texts {
		for _, chunk := range splitMessage(text, discordMaxMsgLen) {
			if _, err := d.api.ChannelMessageSend(env.Room, chunk, discordgo.WithContext(ctx)); err != nil {
				return fmt.Errorf("discord send: %w", err)
			}
		}
	}
	return nil
}
