package domain

// Envelope addresses an outbound message: where it goes, who it answers and
// which inbound message caused it.
type Envelope struct {
	Room    string
	User    User
	Message *InboundMessage
}

// NewEnvelope builds the envelope for a reply to msg.
func NewEnvelope(msg *InboundMessage) Envelope {
	return Envelope{
		Room:    msg.Room,
		User:    msg.User,
		Message: msg,
	}
}
