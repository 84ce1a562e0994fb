package transcript

import (
	"context"
	"log/slog"

	"brobbot/internal/domain"
)

// Recorder wraps a transport and archives what it successfully sends.
// Locked passes straight through and is never archived.
type Recorder struct {
	domain.Transport
	store  *Store
	logger *slog.Logger
}

func NewRecorder(t domain.Transport, store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{Transport: t, store: store, logger: logger}
}

func (r *Recorder) Send(ctx context.Context, env domain.Envelope, texts []string) error {
	return r.record(ctx, "send", env, texts, r.Transport.Send)
}

func (r *Recorder) Emote(ctx context.Context, env domain.Envelope, texts []string) error {
	return r.record(ctx, "emote", env, texts, r.Transport.Emote)
}

func (r *Recorder) Reply(ctx context.Context, env domain.Envelope, texts []string) error {
	return r.record(ctx, "reply", env, texts, r.Transport.Reply)
}

func (r *Recorder) Topic(ctx context.Context, env domain.Envelope, texts []string) error {
	return r.record(ctx, "topic", env, texts, r.Transport.Topic)
}

func (r *Recorder) Play(ctx context.Context, env domain.Envelope, texts []string) error {
	return r.record(ctx, "play", env, texts, r.Transport.Play)
}

func (r *Recorder) Locked(ctx context.Context, env domain.Envelope, texts []string) error {
	return r.Transport.Locked(ctx, env, texts)
}

type verbFunc func(ctx context.Context, env domain.Envelope, texts []string) error

// record archives texts only after the transport accepted them. Archive
// failures are logged; they never fail the post.
func (r *Recorder) record(ctx context.Context, kind string, env domain.Envelope, texts []string, send verbFunc) error {
	if err := send(ctx, env, texts); err != nil {
		return err
	}
	for _, text := range texts {
		err := r.store.Append(ctx, Entry{
			Direction: DirectionOut,
			Adapter:   r.Transport.Name(),
			Room:      env.Room,
			UserID:    env.User.ID,
			UserName:  env.User.Name,
			Kind:      kind,
			Text:      text,
		})
		if err != nil {
			r.logger.Error("transcript outbound write failed", "room", env.Room, "kind", kind, "err", err)
		}
	}
	return nil
}
