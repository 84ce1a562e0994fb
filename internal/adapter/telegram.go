package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"brobbot/internal/domain"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// telegramAPI is the part of *tgbotapi.BotAPI the transport uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram implements domain.Transport for a Telegram bot using long polling.
type Telegram struct {
	token     string
	allowFrom []int64 // Allowed user IDs (empty = allow all)
	parseMode string
	robotName string

	api     telegramAPI
	mention *regexp.Regexp
	logger  *slog.Logger

	// noHandle holds the IDs of senders without a @username; Reply cannot
	// @-mention them.
	noHandle sync.Map

	// sleep is replaced in tests to skip backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // User IDs as strings
	ParseMode string
	RobotName string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = tgbotapi.ModeMarkdown
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		parseMode: cfg.ParseMode,
		robotName: cfg.RobotName,
		logger:    cfg.Logger,
		sleep:     sleepContext,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Run connects to Telegram and publishes updates until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context, bus domain.MessageBus) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.api = bot
	t.mention = regexp.MustCompile(`(?i)^@` + regexp.QuoteMeta(bot.Self.UserName) + `\b`)
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram adapter stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if msg := t.inbound(update); msg != nil {
				bus.Publish(msg)
			}
		}
	}
}

// inbound converts an update into a message for the robot, or nil when the
// update carries nothing to dispatch.
func (t *Telegram) inbound(update tgbotapi.Update) *domain.InboundMessage {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return nil
	}

	if !t.isAllowed(m.From.ID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", m.From.ID,
			"username", m.From.UserName,
		)
		return nil
	}

	text := strings.TrimSpace(m.Text)
	if text == "" {
		return nil
	}

	// "/help ping" and "/help@thisbot ping" are commands to the robot.
	if m.IsCommand() {
		cmd := m.Command()
		if cmd == "start" {
			cmd = "help"
		}
		text = strings.TrimSpace(t.robotName + " " + cmd + " " + m.CommandArguments())
	} else {
		text = addressAs(text, t.mention, t.robotName)
	}

	room := strconv.FormatInt(m.Chat.ID, 10)
	userID := strconv.FormatInt(m.From.ID, 10)
	name := m.From.UserName
	if name == "" {
		name = m.From.FirstName
		t.noHandle.Store(userID, struct{}{})
	} else {
		t.noHandle.Delete(userID)
	}

	t.logger.Info("telegram message received",
		"user_id", m.From.ID,
		"chat_id", m.Chat.ID,
		"text_len", len(text),
	)

	return &domain.InboundMessage{
		ID:        strconv.Itoa(m.MessageID),
		Adapter:   t.Name(),
		Room:      room,
		User:      domain.User{ID: userID, Name: name, Room: room},
		Text:      text,
		Timestamp: time.Unix(int64(m.Date), 0),
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *Telegram) Send(ctx context.Context, env domain.Envelope, texts []string) error {
	return t.sendAll(ctx, env, texts, false)
}

func (t *Telegram) Emote(ctx context.Context, env domain.Envelope, texts []string) error {
	return t.sendAll(ctx, env, wrapEach("_", texts), false)
}

// Reply addresses the user by @username, or by first name followed by a
// colon when they have none.
func (t *Telegram) Reply(ctx context.Context, env domain.Envelope, texts []string) error {
	prefix := "@" + env.User.Name + " "
	if _, ok := t.noHandle.Load(env.User.ID); ok {
		prefix = env.User.Name + ": "
	}
	return t.sendAll(ctx, env, prefixEach(prefix, texts), false)
}

func (t *Telegram) Play(ctx context.Context, env domain.Envelope, texts []string) error {
	return t.sendAll(ctx, env, prefixEach("🔊 ", texts), false)
}

// Locked sends with content protection so the message cannot be forwarded
// or saved.
func (t *Telegram) Locked(ctx context.Context, env domain.Envelope, texts []string) error {
	return t.sendAll(ctx, env, texts, true)
}

// Topic sets the chat title; the last text wins.
func (t *Telegram) Topic(ctx context.Context, env domain.Envelope, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	chatID, err := t.chatID(env)
	if err != nil {
		return err
	}
	cfg := tgbotapi.SetChatTitleConfig{ChatID: chatID, Title: texts[len(texts)-1]}
	if _, err := t.api.Request(cfg); err != nil {
		return fmt.Errorf("telegram topic: %w", err)
	}
	return nil
}

func (t *Telegram) chatID(env domain.Envelope) (int64, error) {
	if t.api == nil {
		return 0, fmt.Errorf("telegram: not connected")
	}
	id, err := strconv.ParseInt(env.Room, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat ID %q: %w", env.Room, err)
	}
	return id, nil
}

func (t *Telegram) sendAll(ctx context.Context, env domain.Envelope, texts []string, protect bool) error {
	chatID, err := t.chatID(env)
	if err != nil {
		return err
	}
	for _, text := range texts {
		for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
			if err := t.sendChunk(ctx, chatID, chunk, protect); err != nil {
				return err
			}
		}
	}
	return nil
}

// sendChunk sends a single message chunk with retry and rate limit handling.
// Strategy: try the configured parse mode first, on parse error fall back to
// plain text, retry transient errors with backoff.
func (t *Telegram) sendChunk(ctx context.Context, chatID int64, text string, protect bool) error {
	const maxRetries = telegramMaxSendRetries

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ProtectContent = protect
		if attempt == 0 {
			msg.ParseMode = t.parseMode
		}

		if _, err = t.api.Send(msg); err == nil {
			return nil
		}

		errStr := err.Error()

		// Markdown parse error: the text is fine as plain text.
		if msg.ParseMode != "" && strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text",
				"err", err, "parseMode", t.parseMode,
			)
			continue
		}

		if attempt == maxRetries {
			break
		}

		wait := time.Duration(attempt+1) * time.Second
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			wait = time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off", "retry_after", wait, "attempt", attempt+1)
		} else {
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", wait)
		}
		if serr := t.sleep(ctx, wait); serr != nil {
			return fmt.Errorf("telegram send: %w", serr)
		}
	}

	t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	return fmt.Errorf("telegram send: %w", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
