package eventbus

import (
	"context"
	"sync"

	"github.com/cristianortiz/harvestAuction/internal/shared/logger"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// subscriberBuffer bounds how far a slow subscriber may lag before messages
// are dropped for it.
const subscriberBuffer = 64

type subscriber struct {
	ch   chan Message
	done <-chan struct{}
}

// InProcBus is the single-process Bus: a registry of subscriber channels per
// topic. Publishing appends to every live subscriber under the topic lock,
// which is what preserves per-topic order.
type InProcBus struct {
	mu   sync.Mutex
	subs map[string][]*subscriber
}

func NewInProcBus() *InProcBus {
	return &InProcBus{
		subs: make(map[string][]*subscriber),
	}
}

// Publish delivers the payload to every subscriber of the topic. A
// subscriber whose buffer is full has this message dropped, it does not
// stall the publisher.
func (b *InProcBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[topic] {
		select {
		case <-sub.done:
			// cancelled, the reaper goroutine removes and closes it
			continue
		default:
		}

		select {
		case sub.ch <- Message{Topic: topic, Payload: payload}:
		default:
			log.Warn("event bus subscriber lagging, message dropped",
				zap.String("topic", topic),
			)
		}
	}
	return nil
}

// Subscribe registers a buffered channel under the topic. The subscription
// ends when ctx is cancelled, at which point the channel is closed. The ctx
// must be cancellable: the registry entry and its reaper goroutine live
// until the cancellation arrives.
func (b *InProcBus) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	sub := &subscriber{
		ch:   make(chan Message, subscriberBuffer),
		done: ctx.Done(),
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s == sub {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				close(sub.ch)
				break
			}
		}
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}()

	return sub.ch, nil
}
