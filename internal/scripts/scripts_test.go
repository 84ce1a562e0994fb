package scripts

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brobbot/internal/domain"
	"brobbot/internal/robot"
)

type call struct {
	verb  string
	texts []string
}

type fakeTransport struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeTransport) Name() string { return "fake" }
func (f *fakeTransport) Run(context.Context, domain.MessageBus) error { return nil }

func (f *fakeTransport) add(verb string, texts []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{verb: verb, texts: texts})
	return nil
}

func (f *fakeTransport) Send(_ context.Context, _ domain.Envelope, t []string) error {
	return f.add("send", t)
}
func (f *fakeTransport) Emote(_ context.Context, _ domain.Envelope, t []string) error {
	return f.add("emote", t)
}
func (f *fakeTransport) Reply(_ context.Context, _ domain.Envelope, t []string) error {
	return f.add("reply", t)
}
func (f *fakeTransport) Topic(_ context.Context, _ domain.Envelope, t []string) error {
	return f.add("topic", t)
}
func (f *fakeTransport) Play(_ context.Context, _ domain.Envelope, t []string) error {
	return f.add("play", t)
}
func (f *fakeTransport) Locked(_ context.Context, _ domain.Envelope, t []string) error {
	return f.add("locked", t)
}

func (f *fakeTransport) last(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "expected an outbound call")
	return f.calls[len(f.calls)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRobot(t *testing.T, name, alias string, scripts ...robot.Script) (*robot.Robot, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	r := robot.New(robot.Config{Name: name, Alias: alias, Transport: ft, Logger: testLogger()})
	require.NoError(t, r.Load(scripts...))
	return r, ft
}

func say(r *robot.Robot, text string) {
	r.Receive(context.Background(), &domain.InboundMessage{
		Adapter: "fake",
		Room:    "general",
		User:    domain.User{ID: "1", Name: "dave", Room: "general"},
		Text:    text,
	})
}

func TestSelect(t *testing.T) {
	all, err := Select(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"help", "ping", "httpstatus"}, Names(all))

	some, err := Select([]string{"ping", "help", "ping"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ping", "help"}, Names(some))

	_, err = Select([]string{"weather"})
	assert.ErrorIs(t, err, ErrUnknownScript)
}

func TestPing(t *testing.T) {
	r, ft := newRobot(t, "hal", "", Ping{})

	say(r, "hal ping")
	assert.Equal(t, call{"send", []string{"PONG"}}, ft.last(t))

	say(r, "hal adapter")
	assert.Equal(t, []string{"fake"}, ft.last(t).texts)

	say(r, "hal echo hello there")
	assert.Equal(t, []string{"hello there"}, ft.last(t).texts)

	say(r, "hal time")
	assert.Contains(t, ft.last(t).texts[0], "Server time is: ")

	n := ft.count()
	say(r, "ping")
	assert.Equal(t, n, ft.count(), "unaddressed ping must be ignored")
}
