package domain

import (
	"sync/atomic"
	"time"
)

// User identifies the author of an inbound message as the transport knows it.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Room string `json:"room,omitempty"`
}

// InboundMessage is a chat event delivered by a transport. It travels by
// pointer so listeners and the dispatcher share the finished flag.
type InboundMessage struct {
	ID        string
	Adapter   string
	Room      string
	User      User
	Text      string
	Timestamp time.Time

	finished atomic.Bool
}

// Finish stops the dispatcher from handing this message to further listeners.
func (m *InboundMessage) Finish() {
	m.finished.Store(true)
}

// Finished reports whether Finish has been called.
func (m *InboundMessage) Finished() bool {
	return m.finished.Load()
}
