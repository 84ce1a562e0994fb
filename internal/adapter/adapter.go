// Package adapter implements domain.Transport for the chat services brobbot
// can connect to.
package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"brobbot/internal/config"
	"brobbot/internal/domain"
)

// ErrUnknownAdapter is returned by New for an adapter name it does not know.
var ErrUnknownAdapter = errors.New("unknown adapter")

// New builds the transport called name from cfg.
func New(name string, cfg *config.Config, logger *slog.Logger) (domain.Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("adapter", name)
	robotName := cfg.Robot.Name
	ac := cfg.Adapters

	switch name {
	case "shell":
		return NewShell(ShellConfig{User: ac.Shell.User, RobotName: robotName, Logger: logger}), nil
	case "telegram":
		return NewTelegram(TelegramConfig{
			Token:     ac.Telegram.Token,
			AllowFrom: ac.Telegram.AllowFrom,
			ParseMode: ac.Telegram.ParseMode,
			RobotName: robotName,
			Logger:    logger,
		}), nil
	case "discord":
		return NewDiscord(DiscordConfig{
			Token:     ac.Discord.Token,
			GuildID:   ac.Discord.GuildID,
			RobotName: robotName,
			Logger:    logger,
		}), nil
	case "slack":
		return NewSlack(SlackConfig{
			BotToken:  ac.Slack.BotToken,
			AppToken:  ac.Slack.AppToken,
			RobotName: robotName,
			Logger:    logger,
		}), nil
	case "websocket":
		return NewWebSocket(WebSocketConfig{
			Host:   ac.WebSocket.Host,
			Port:   ac.WebSocket.Port,
			Path:   ac.WebSocket.Path,
			Logger: logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdapter, name)
	}
}

// addressAs rewrites a leading platform mention of the bot account (for
// example "<@U123>" on Slack) into the robot's name, so the robot's
// addressing rules see "brobbot ping" instead of a service-specific token.
func addressAs(text string, mention *regexp.Regexp, robotName string) string {
	if mention == nil || robotName == "" {
		return text
	}
	loc := mention.FindStringIndex(text)
	if loc == nil || loc[0] != 0 {
		return text
	}
	return robotName + " " + strings.TrimLeft(text[loc[1]:], " :,")
}

// prefixEach returns texts with prefix prepended to every entry.
func prefixEach(prefix string, texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = prefix + t
	}
	return out
}

// wrapEach returns texts with every entry surrounded by mark.
func wrapEach(mark string, texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = mark + t + mark
	}
	return out
}
