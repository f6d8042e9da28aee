package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"lifelink/pkg/logger"
)

const (
	channelPrefix  = "chat:relay:"
	channelPattern = channelPrefix + "*"
)

var (
	ErrNotSubscribed      = errors.New("relay broker is not subscribed")
	ErrSubscriptionClosed = errors.New("relay subscription closed")
)

// RedisBroker publishes every payload to redis; each instance's Run loop feeds the
// pattern subscription into its own hub, including the publishing instance.
type RedisBroker struct {
	client *redis.Client
	fanout Fanout
	log    logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewRedisBroker does not take ownership of client.
func NewRedisBroker(client *redis.Client, fanout Fanout, log logger.Logger) *RedisBroker {
	return &RedisBroker{client: client, fanout: fanout, log: log}
}

func channelFor(roomKey string) string {
	return channelPrefix + roomKey
}

func roomFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return "", false
	}
	room := strings.TrimPrefix(channel, channelPrefix)
	return room, room != ""
}

func (b *RedisBroker) Publish(ctx context.Context, roomKey string, payload []byte) error {
	if err := b.client.Publish(ctx, channelFor(roomKey), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", roomKey, err)
	}
	return nil
}

// Subscribe waits for redis to confirm the pattern subscription. Local members only
// receive through it, so publishing before it succeeds reaches nobody.
func (b *RedisBroker) Subscribe(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		return nil
	}

	pubsub := b.client.PSubscribe(ctx, channelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", channelPattern, err)
	}
	b.pubsub = pubsub

	b.log.Info("Relay subscribed to redis", "pattern", channelPattern)
	return nil
}

func (b *RedisBroker) Run(ctx context.Context) error {
	b.mu.Lock()
	pubsub := b.pubsub
	b.mu.Unlock()
	if pubsub == nil {
		return ErrNotSubscribed
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}
			room, ok := roomFromChannel(msg.Channel)
			if !ok {
				b.log.Warn("Ignoring relay message on unexpected channel", "channel", msg.Channel)
				continue
			}
			b.fanout.Broadcast(room, []byte(msg.Payload))
		}
	}
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub == nil {
		return nil
	}
	err := b.pubsub.Close()
	b.pubsub = nil
	return err
}
