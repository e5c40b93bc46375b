package eventbus

import (
	"context"
)

// Message is one published event as seen by a subscriber.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus fans events out to observers. Publish only enqueues: it never blocks
// on subscriber I/O, and messages published to the same topic are delivered
// to each subscriber in publish order. Delivery is at-least-once; slow
// subscribers may have messages dropped rather than stall the publishers.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns a channel of messages for the topic. Cancelling ctx
	// ends the subscription and closes the channel; ctx must be cancellable,
	// it is the only way a subscription is ever released.
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
}
