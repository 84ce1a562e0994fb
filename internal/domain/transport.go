package domain

import "context"

// Transport is a chat backend (shell, Telegram, Discord, Slack, WebSocket).
// Every outbound verb receives the envelope of the message being answered and
// the texts in the order the caller supplied them.
type Transport interface {
	Name() string
	Run(ctx context.Context, bus MessageBus) error

	Send(ctx context.Context, env Envelope, texts []string) error
	Emote(ctx context.Context, env Envelope, texts []string) error
	Reply(ctx context.Context, env Envelope, texts []string) error
	Topic(ctx context.Context, env Envelope, texts []string) error
	Play(ctx context.Context, env Envelope, texts []string) error
	// Locked posts content that must not reach any transcript or archive.
	Locked(ctx context.Context, env Envelope, texts []string) error
}
