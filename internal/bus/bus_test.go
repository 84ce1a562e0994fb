package bus

import (
	"testing"

	"brobbot/internal/domain"
)

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	b := New(2, testEBLogger())
	msg := &domain.InboundMessage{Adapter: "shell", Text: "hi"}

	b.Publish(msg)

	select {
	case got := <-b.Subscribe():
		if got != msg {
			t.Fatal("expected the published message")
		}
	default:
		t.Fatal("expected a message on the channel")
	}
}

func TestInMemoryBus_PublishAfterClose(t *testing.T) {
	b := New(1, testEBLogger())
	b.Close()
	b.Close()

	b.Publish(&domain.InboundMessage{Adapter: "shell"})

	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("closed bus should not deliver")
	}
}
