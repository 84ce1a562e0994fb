// Package response implements the per-event reply handle given to listeners.
package response

import (
	"context"
	"errors"
	"math/rand/v2"

	"brobbot/internal/domain"
	"brobbot/internal/httpclient"
)

// ErrEmptyChoice is returned by Random when there is nothing to choose from.
var ErrEmptyChoice = errors.New("random: empty choice")

// Runtime is what a Response needs from the robot that created it.
type Runtime interface {
	Transport() domain.Transport
	HTTP(url string) *httpclient.ScopedClient
}

// Response is handed to a listener for one matched message. It is not reused
// across messages and not safe for use by concurrent handlers.
type Response struct {
	// Match holds the submatches of the pattern that selected the listener;
	// index 0 is the whole match.
	Match []string

	runtime  Runtime
	message  *domain.InboundMessage
	envelope domain.Envelope
}

// New builds the response for msg matched with match.
func New(rt Runtime, msg *domain.InboundMessage, match []string) *Response {
	return &Response{
		Match:    match,
		runtime:  rt,
		message:  msg,
		envelope: domain.NewEnvelope(msg),
	}
}

// Envelope returns the addressing used for every outbound call.
func (r *Response) Envelope() domain.Envelope { return r.envelope }

// Message returns the inbound message being answered.
func (r *Response) Message() *domain.InboundMessage { return r.message }

// Group returns submatch i, or "" when the pattern had no such group.
func (r *Response) Group(i int) string {
	if i < 0 || i >= len(r.Match) {
		return ""
	}
	return r.Match[i]
}

// Send posts texts back to the room, in order.
func (r *Response) Send(ctx context.Context, texts ...string) error {
	return r.runtime.Transport().Send(ctx, r.envelope, texts)
}

// Emote posts texts as an action.
func (r *Response) Emote(ctx context.Context, texts ...string) error {
	return r.runtime.Transport().Emote(ctx, r.envelope, texts)
}

// Reply posts texts addressed to the user who sent the message.
func (r *Response) Reply(ctx context.Context, texts ...string) error {
	return r.runtime.Transport().Reply(ctx, r.envelope, texts)
}

// Topic sets the room topic.
func (r *Response) Topic(ctx context.Context, texts ...string) error {
	return r.runtime.Transport().Topic(ctx, r.envelope, texts)
}

// Play plays sounds identified by texts.
func (r *Response) Play(ctx context.Context, texts ...string) error {
	return r.runtime.Transport().Play(ctx, r.envelope, texts)
}

// Locked posts texts that must stay out of transcripts and archives.
func (r *Response) Locked(ctx context.Context, texts ...string) error {
	return r.runtime.Transport().Locked(ctx, r.envelope, texts)
}

// Finish stops further listeners from seeing the message.
func (r *Response) Finish() {
	r.message.Finish()
}

// HTTP returns a request builder bound to url. Nothing is sent until one of
// its verb methods is called.
func (r *Response) HTTP(url string) *httpclient.ScopedClient {
	return r.runtime.HTTP(url)
}

// Random picks one of texts uniformly.
func (r *Response) Random(texts []string) (string, error) {
	return Random(texts)
}

// Random picks one element of items uniformly.
func Random[T any](items []T) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, ErrEmptyChoice
	}
	return items[rand.IntN(len(items))], nil
}
