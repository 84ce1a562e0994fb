package domain

// MessageBus carries inbound messages from transports to the robot.
type MessageBus interface {
	Publish(msg *InboundMessage)
	Subscribe() <-chan *InboundMessage
	Close()
}
