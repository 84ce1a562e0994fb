package bus

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"brobbot/internal/domain"
)

func testEBLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestEventBus_EmitAndReceive(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	msg := &domain.InboundMessage{Text: "brobbot ping"}
	var got *domain.InboundMessage
	eb.On(EventMessageReceived, func(e Event) {
		got = e.Message
	})

	eb.Emit(Event{Type: EventMessageReceived, Message: msg})

	if got != msg {
		t.Errorf("expected handler to receive the message")
	}
}

func TestEventBus_WildcardHandler(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var count int32
	eb.On("*", func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	eb.Emit(Event{Type: "event.a"})
	eb.Emit(Event{Type: "event.b"})

	if atomic.LoadInt32(&count) != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}

func TestEventBus_Off(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var first, second int32
	id := eb.On("test.event", func(e Event) { atomic.AddInt32(&first, 1) })
	eb.On("test.event", func(e Event) { atomic.AddInt32(&second, 1) })

	eb.Emit(Event{Type: "test.event"})
	eb.Off("test.event", id)
	eb.Emit(Event{Type: "test.event"})

	if atomic.LoadInt32(&first) != 1 {
		t.Errorf("expected 1 after unsubscribe, got %d", first)
	}
	if atomic.LoadInt32(&second) != 2 {
		t.Errorf("remaining handler should still fire, got %d", second)
	}
}

func TestEventBus_UniqueIDsAfterOff(t *testing.T) {
	eb := NewEventBus(testEBLogger())
	a := eb.On("x", func(Event) {})
	eb.Off("x", a)
	b := eb.On("x", func(Event) {})
	if a == b {
		t.Errorf("handler IDs reused: %s", a)
	}
}

func TestEventBus_PanicRecovery(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var after int32
	eb.On("panic", func(e Event) { panic("test panic") })
	eb.On("panic", func(e Event) { atomic.AddInt32(&after, 1) })

	eb.Emit(Event{Type: "panic"})

	if atomic.LoadInt32(&after) != 1 {
		t.Error("handler after a panicking one should still run")
	}
}
