// Package broker moves relay payloads from the instance that stored a message to the
// hubs whose connections joined the room.
package broker

import (
	"context"
)

// Fanout is the local delivery end of a broker, normally *hub.Hub.
type Fanout interface {
	Broadcast(roomKey string, payload []byte) int
}

type Broker interface {
	Publish(ctx context.Context, roomKey string, payload []byte) error
	// Subscribe returns once the broker can deliver to local members. It must succeed
	// before the server accepts connections.
	Subscribe(ctx context.Context) error
	// Run blocks until ctx is done or the subscription fails.
	Run(ctx context.Context) error
	Close() error
}

// LocalBroker delivers straight to the in-process hub.
type LocalBroker struct {
	fanout Fanout
}

func NewLocalBroker(fanout Fanout) *LocalBroker {
	return &LocalBroker{fanout: fanout}
}

func (b *LocalBroker) Publish(ctx context.Context, roomKey string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.fanout.Broadcast(roomKey, payload)
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context) error {
	return ctx.Err()
}

func (b *LocalBroker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *LocalBroker) Close() error { return nil }
