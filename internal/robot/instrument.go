package robot

import (
	"context"

	"brobbot/internal/domain"
	"brobbot/internal/metrics"
)

// instrumented counts outbound calls per adapter and verb.
type instrumented struct {
	domain.Transport
}

func instrument(t domain.Transport) domain.Transport {
	return &instrumented{Transport: t}
}

func (t *instrumented) count(verb string) {
	metrics.Outbound(t.Name(), verb).Inc()
}

func (t *instrumented) Send(ctx context.Context, env domain.Envelope, texts []string) error {
	t.count("send")
	return t.Transport.Send(ctx, env, texts)
}

func (t *instrumented) Emote(ctx context.Context, env domain.Envelope, texts []string) error {
	t.count("emote")
	return t.Transport.Emote(ctx, env, texts)
}

func (t *instrumented) Reply(ctx context.Context, env domain.Envelope, texts []string) error {
	t.count("reply")
	return t.Transport.Reply(ctx, env, texts)
}

func (t *instrumented) Topic(ctx context.Context, env domain.Envelope, texts []string) error {
	t.count("topic")
	return t.Transport.Topic(ctx, env, texts)
}

func (t *instrumented) Play(ctx context.Context, env domain.Envelope, texts []string) error {
	t.count("play")
	return t.Transport.Play(ctx, env, texts)
}

func (t *instrumented) Locked(ctx context.Context, env domain.Envelope, texts []string) error {
	t.count("locked")
	return t.Transport.Locked(ctx, env, texts)
}
