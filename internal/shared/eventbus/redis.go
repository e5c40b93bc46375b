package eventbus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// publishQueue bounds the outbound buffer between Publish and the flusher.
const publishQueue = 256

// RedisBus implements Bus on Redis Pub/Sub, one channel per topic. Publish
// enqueues into an internal ordered queue drained by a single flusher
// goroutine, so per-topic emission order survives without publishers ever
// blocking on the network.
type RedisBus struct {
	client *redis.Client
	out    chan Message
	cancel context.CancelFunc
}

// NewRedisBus connects, pings, and starts the flusher.
func NewRedisBus(ctx context.Context, addr, password string, db int) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	flushCtx, cancel := context.WithCancel(context.Background())
	bus := &RedisBus{
		client: rdb,
		out:    make(chan Message, publishQueue),
		cancel: cancel,
	}
	go bus.flush(flushCtx)

	return bus, nil
}

// Publish enqueues the payload for the flusher. A full queue is reported to
// the caller instead of blocking admission or closure on redis.
func (b *RedisBus) Publish(_ context.Context, topic string, payload []byte) error {
	select {
	case b.out <- Message{Topic: topic, Payload: payload}:
		return nil
	default:
		return fmt.Errorf("redis bus publish queue full, dropping message for topic %s", topic)
	}
}

// Subscribe bridges a redis subscription into a Message channel.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	pubsub := b.client.Subscribe(ctx, topic)
	// force the subscription onto the wire before returning
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	out := make(chan Message, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close stops the flusher and releases the connection.
func (b *RedisBus) Close() error {
	b.cancel()
	return b.client.Close()
}

func (b *RedisBus) flush(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.out:
			if err := b.client.Publish(ctx, msg.Topic, msg.Payload).Err(); err != nil {
				log.Error("redis bus publish failed",
					zap.String("topic", msg.Topic),
					zap.Error(err),
				)
			}
		}
	}
}
