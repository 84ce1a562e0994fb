package robot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brobbot/internal/bus"
	"brobbot/internal/domain"
	"brobbot/internal/metrics"
	"brobbot/internal/response"
)

type sent struct {
	verb  string
	texts []string
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeTransport) Name() string { return "fake" }
func (f *fakeTransport) Run(ctx context.Context, bus domain.MessageBus) error { return nil }

func (f *fakeTransport) record(verb string, texts []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{verb: verb, texts: texts})
	return nil
}

func (f *fakeTransport) Send(_ context.Context, _ domain.Envelope, t []string) error {
	return f.record("send", t)
}
func (f *fakeTransport) Emote(_ context.Context, _ domain.Envelope, t []string) error {
	return f.record("emote", t)
}
func (f *fakeTransport) Reply(_ context.Context, _ domain.Envelope, t []string) error {
	return f.record("reply", t)
}
func (f *fakeTransport) Topic(_ context.Context, _ domain.Envelope, t []string) error {
	return f.record("topic", t)
}
func (f *fakeTransport) Play(_ context.Context, _ domain.Envelope, t []string) error {
	return f.record("play", t)
}
func (f *fakeTransport) Locked(_ context.Context, _ domain.Envelope, t []string) error {
	return f.record("locked", t)
}

func (f *fakeTransport) calls() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRobot(t *testing.T, alias string) (*Robot, *fakeTransport, *bus.EventBus) {
	t.Helper()
	ft := &fakeTransport{}
	events := bus.NewEventBus(testLogger())
	r := New(Config{Name: "hal", Alias: alias, Transport: ft, Events: events, Logger: testLogger()})
	return r, ft, events
}

func msg(text string) *domain.InboundMessage {
	return &domain.InboundMessage{
		ID:      "1",
		Adapter: "fake",
		Room:    "general",
		User:    domain.User{ID: "u1", Name: "dave", Room: "general"},
		Text:    text,
	}
}

func TestHear_MatchesAnywhere(t *testing.T) {
	r, ft, _ := newTestRobot(t, "")
	r.Hear(regexp.MustCompile(`(?i)coffee`), func(ctx context.Context, res *response.Response) error {
		return res.Send(ctx, "brewing")
	})

	r.Receive(context.Background(), msg("who wants Coffee?"))
	r.Receive(context.Background(), msg("tea please"))

	require.Len(t, ft.calls(), 1)
	assert.Equal(t, []string{"brewing"}, ft.calls()[0].texts)
}

func TestRespond_Addressing(t *testing.T) {
	tests := []struct {
		text  string
		match bool
	}{
		{"hal ping", true},
		{"HAL: ping", true},
		{"@hal, ping", true},
		{"  hal   ping", true},
		{"!ping", true},
		{"! ping", true},
		{"ping", false},
		{"halping", false},
		{"tell hal ping", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r, ft, _ := newTestRobot(t, "!")
			r.Respond(regexp.MustCompile(`(?i)^ping$`), func(ctx context.Context, res *response.Response) error {
				return res.Reply(ctx, "PONG")
			})
			r.Receive(context.Background(), msg(tt.text))
			assert.Equal(t, tt.match, len(ft.calls()) == 1)
		})
	}
}

func TestRespond_GroupsFromRemainder(t *testing.T) {
	r, _, _ := newTestRobot(t, "")
	var got string
	r.Respond(regexp.MustCompile(`(?i)^echo (.*)$`), func(ctx context.Context, res *response.Response) error {
		got = res.Group(1)
		return nil
	})
	r.Receive(context.Background(), msg("hal echo hello world"))
	assert.Equal(t, "hello world", got)
}

func TestReceive_OrderAndFinish(t *testing.T) {
	r, _, _ := newTestRobot(t, "")
	var order []string
	r.Hear(regexp.MustCompile(`.`), func(ctx context.Context, res *response.Response) error {
		order = append(order, "first")
		return nil
	})
	r.Hear(regexp.MustCompile(`stop`), func(ctx context.Context, res *response.Response) error {
		order = append(order, "second")
		res.Finish()
		return nil
	})
	r.Hear(regexp.MustCompile(`.`), func(ctx context.Context, res *response.Response) error {
		order = append(order, "third")
		return nil
	})

	r.Receive(context.Background(), msg("go"))
	assert.Equal(t, []string{"first", "third"}, order)

	order = nil
	m := msg("stop")
	r.Receive(context.Background(), m)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.True(t, m.Finished())
}

func TestReceive_FinishedBeforeDispatch(t *testing.T) {
	r, _, _ := newTestRobot(t, "")
	called := false
	r.Hear(regexp.MustCompile(`.`), func(ctx context.Context, res *response.Response) error {
		called = true
		return nil
	})
	m := msg("x")
	m.Finish()
	r.Receive(context.Background(), m)
	assert.False(t, called)
}

func TestReceive_ErrorsAndPanicsDoNotStopDispatch(t *testing.T) {
	r, _, events := newTestRobot(t, "")
	var failures []string
	events.On(bus.EventHandlerError, func(ev bus.Event) {
		failures = append(failures, ev.Payload["error"].(string))
	})

	r.Hear(regexp.MustCompile(`.`), func(ctx context.Context, res *response.Response) error {
		return errors.New("boom")
	})
	r.Hear(regexp.MustCompile(`.`), func(ctx context.Context, res *response.Response) error {
		panic("kaboom")
	})
	reached := false
	r.Hear(regexp.MustCompile(`.`), func(ctx context.Context, res *response.Response) error {
		reached = true
		return nil
	})

	r.Receive(context.Background(), msg("x"))
	assert.True(t, reached)
	require.Len(t, failures, 2)
	assert.Equal(t, "boom", failures[0])
	assert.Contains(t, failures[1], "kaboom")
}

func TestReceive_EmitsEvents(t *testing.T) {
	r, _, events := newTestRobot(t, "")
	r.Hear(regexp.MustCompile(`hi`), func(ctx context.Context, res *response.Response) error { return nil })

	var types []string
	events.On("*", func(ev bus.Event) { types = append(types, ev.Type) })

	r.Receive(context.Background(), msg("hi"))
	assert.Equal(t, []string{bus.EventMessageReceived, bus.EventListenerMatched}, types)
}

func TestHelpCommand(t *testing.T) {
	r, _, _ := newTestRobot(t, "")
	r.HelpCommand("brobbot ping", "Reply with pong")
	assert.Equal(t, []string{"brobbot ping - Reply with pong"}, r.Commands().List())
}

type scriptFunc struct {
	name string
	load func(*Robot) error
}

func (s scriptFunc) Name() string { return s.name }
func (s scriptFunc) Load(r *Robot) error { return s.load(r) }

func TestLoad_StopsAtFirstError(t *testing.T) {
	r, _, _ := newTestRobot(t, "")
	var loaded []string
	ok := scriptFunc{name: "ok", load: func(*Robot) error { loaded = append(loaded, "ok"); return nil }}
	bad := scriptFunc{name: "bad", load: func(*Robot) error { return errors.New("broken") }}
	never := scriptFunc{name: "never", load: func(*Robot) error { loaded = append(loaded, "never"); return nil }}

	err := r.Load(ok, bad, never)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load script bad")
	assert.Equal(t, []string{"ok"}, loaded)
}

func TestHTTP_UsesConfiguredOptions(t *testing.T) {
	r, ft, _ := newTestRobot(t, "")
	c := r.HTTP("http://example.invalid/api").Path("v1").Query("q", "1")
	assert.Equal(t, "http://example.invalid/api/v1?q=1", c.URL())
	assert.Empty(t, ft.calls())
}

func TestRun_ConsumesBusUntilClosed(t *testing.T) {
	r, ft, _ := newTestRobot(t, "")
	r.Hear(regexp.MustCompile(`.`), func(ctx context.Context, res *response.Response) error {
		return res.Send(ctx, res.Message().Text)
	})

	mb := bus.New(4, testLogger())
	mb.Publish(msg("one"))
	mb.Publish(msg("two"))

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), mb)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(ft.calls()) == 2 }, time.Second, 10*time.Millisecond)
	mb.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after bus close")
	}
	assert.Equal(t, []string{"one"}, ft.calls()[0].texts)
	assert.Equal(t, []string{"two"}, ft.calls()[1].texts)
}

func TestServe_StopsOnCancel(t *testing.T) {
	r, _, _ := newTestRobot(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestTransport_CountsOutboundPerVerb(t *testing.T) {
	r, ft, _ := newTestRobot(t, "")
	before := metrics.Outbound("fake", "emote").Value()

	r.Hear(regexp.MustCompile(`wave`), func(ctx context.Context, res *response.Response) error {
		return res.Emote(ctx, "waves")
	})
	r.Receive(context.Background(), msg("wave please"))

	require.Len(t, ft.calls(), 1)
	assert.Equal(t, before+1, metrics.Outbound("fake", "emote").Value())
}
