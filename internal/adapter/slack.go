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

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"brobbot/internal/domain"
)

const slackMaxMsgLen = 4000

// Slack implements domain.Transport for Slack using Socket Mode.
type Slack struct {
	client    *slack.Client
	robotName string
	logger    *slog.Logger

	botUID  string // the bot's own user ID, to avoid replying to self
	mention *regexp.Regexp

	namesMu sync.Mutex
	names   map[string]string // user ID -> display name
}

// SlackConfig configures the Slack adapter.
type SlackConfig struct {
	BotToken  string
	AppToken  string
	RobotName string
	APIURL    string // optional override of https://slack.com/api/
	Logger    *slog.Logger
}

// NewSlack creates a new Slack adapter. No connection is made until Run.
func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	opts := []slack.Option{slack.OptionAppLevelToken(cfg.AppToken)}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	return &Slack{
		client:    slack.New(cfg.BotToken, opts...),
		robotName: cfg.RobotName,
		logger:    cfg.Logger,
		names:     make(map[string]string),
	}
}

func (s *Slack) Name() string { return "slack" }

// Run connects to Slack via Socket Mode and publishes messages until ctx is
// cancelled.
func (s *Slack) Run(ctx context.Context, bus domain.MessageBus) error {
	authResp, err := s.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.mention = regexp.MustCompile(`^<@` + regexp.QuoteMeta(authResp.UserID) + `(\|[^>]*)?>`)
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(s.client)

	go func() {
		for evt := range socketClient.Events {
			if evt.Request != nil {
				// Acknowledge everything to prevent Socket Mode disconnection.
				socketClient.Ack(*evt.Request)
			}
			var msg *domain.InboundMessage
			switch data := evt.Data.(type) {
			case slackevents.EventsAPIEvent:
				msg = s.inbound(ctx, data)
			case slack.SlashCommand:
				msg = s.slashCommand(ctx, data)
			}
			if msg != nil {
				bus.Publish(msg)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

// inbound handles plain message events only. Mentions also arrive as
// message events, so app_mention is ignored to avoid dispatching twice.
func (s *Slack) inbound(ctx context.Context, event slackevents.EventsAPIEvent) *domain.InboundMessage {
	if event.Type != slackevents.CallbackEvent {
		return nil
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return nil
	}
	// Ignore bot's own messages and message_changed subtypes.
	if ev.User == s.botUID || ev.User == "" || ev.SubType != "" {
		return nil
	}

	s.logger.Info("slack message received",
		"user", ev.User,
		"channel", ev.Channel,
		"content_len", len(ev.Text),
	)

	return &domain.InboundMessage{
		ID:        ev.TimeStamp,
		Adapter:   s.Name(),
		Room:      ev.Channel,
		User:      domain.User{ID: ev.User, Name: s.userName(ctx, ev.User), Room: ev.Channel},
		Text:      addressAs(ev.Text, s.mention, s.robotName),
		Timestamp: slackTime(ev.TimeStamp),
	}
}

// slashCommand turns "/brobbot help ping" into "brobbot help ping". The
// command name itself is ignored: any slash command routed to this app is
// addressed to the robot.
func (s *Slack) slashCommand(ctx context.Context, cmd slack.SlashCommand) *domain.InboundMessage {
	s.logger.Info("slack slash command",
		"command", cmd.Command,
		"user", cmd.UserID,
		"channel", cmd.ChannelID,
	)
	return &domain.InboundMessage{
		ID:        cmd.TriggerID,
		Adapter:   s.Name(),
		Room:      cmd.ChannelID,
		User:      domain.User{ID: cmd.UserID, Name: cmd.UserName, Room: cmd.ChannelID},
		Text:      strings.TrimSpace(s.robotName + " " + cmd.Text),
		Timestamp: time.Now(),
	}
}

func (s *Slack) userName(ctx context.Context, id string) string {
	s.namesMu.Lock()
	name, ok := s.names[id]
	s.namesMu.Unlock()
	if ok {
		return name
	}

	name = id
	if u, err := s.client.GetUserInfoContext(ctx, id); err == nil && u.Name != "" {
		name = u.Name
	} else if err != nil {
		s.logger.Debug("slack user lookup failed", "user", id, "err", err)
	}

	s.namesMu.Lock()
	s.names[id] = name
	s.namesMu.Unlock()
	return name
}

// slackTime parses a message ts such as "1700000000.000200".
func slackTime(ts string) time.Time {
	sec, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(n, 0)
}

func (s *Slack) Send(ctx context.Context, env domain.Envelope, texts []string) error {
	return s.post(ctx, env, texts)
}

// Emote posts a /me message.
func (s *Slack) Emote(ctx context.Context, env domain.Envelope, texts []string) error {
	for _, text := range texts {
		if _, _, err := s.client.PostMessageContext(ctx, env.Room,
			slack.MsgOptionMeMessage(),
			slack.MsgOptionText(text, false),
		); err != nil {
			return fmt.Errorf("slack emote: %w", err)
		}
	}
	return nil
}

func (s *Slack) Reply(ctx context.Context, env domain.Envelope, texts []string) error {
	return s.post(ctx, env, prefixEach("<@"+env.User.ID+"> ", texts))
}

func (s *Slack) Play(ctx context.Context, env domain.Envelope, texts []string) error {
	return s.post(ctx, env, prefixEach(":sound: ", texts))
}

// Topic sets the conversation topic; the last text wins.
func (s *Slack) Topic(ctx context.Context, env domain.Envelope, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	if _, err := s.client.SetTopicOfConversationContext(ctx, env.Room, texts[len(texts)-1]); err != nil {
		return fmt.Errorf("slack topic: %w", err)
	}
	return nil
}

// Locked posts ephemeral messages only the envelope user can see.
func (s *Slack) Locked(ctx context.Context, env domain.Envelope, texts []string) error {
	for _, text := range texts {
		if _, err := s.client.PostEphemeralContext(ctx, env.Room, env.User.ID,
			slack.MsgOptionText(text, false),
		); err != nil {
			return fmt.Errorf("slack locked: %w", err)
		}
	}
	return nil
}

func (s *Slack) post(ctx context.Context, env domain.Envelope, texts []string) error {
	for _, text := range texts {
		for _, chunk := range splitMessage(text, slackMaxMsgLen) {
			_, _, err := s.client.PostMessageContext(ctx, env.Room,
				slack.MsgOptionText(chunk, false),
				slack.MsgOptionAsUser(true),
			)
			if err != nil {
				return fmt.Errorf("slack send: %w", err)
			}
		}
	}
	return nil
}
