package broker

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lifelink/pkg/logger"
)

type recordingFanout struct {
	mu    sync.Mutex
	rooms []string
	data  []string
}

func (f *recordingFanout) Broadcast(roomKey string, payload []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, roomKey)
	f.data = append(f.data, string(payload))
	return 1
}

func (f *recordingFanout) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms)
}

func TestLocalBroker_PublishDeliversToFanout(t *testing.T) {
	fanout := &recordingFanout{}
	b := NewLocalBroker(fanout)

	require.NoError(t, b.Publish(context.Background(), "chat:donor:1|patient:2", []byte(`{"message":"hi"}`)))

	assert.Equal(t, []string{"chat:donor:1|patient:2"}, fanout.rooms)
	assert.Equal(t, []string{`{"message":"hi"}`}, fanout.data)
}

func TestLocalBroker_PublishAfterCancel(t *testing.T) {
	fanout := &recordingFanout{}
	b := NewLocalBroker(fanout)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Publish(ctx, "room", []byte("x")), context.Canceled)
	assert.Equal(t, 0, fanout.count())
	assert.ErrorIs(t, b.Subscribe(ctx), context.Canceled)
	assert.NoError(t, b.Run(ctx))
}

func TestRoomFromChannel(t *testing.T) {
	room, ok := roomFromChannel(channelFor("chat:donor:7|patient:3"))
	assert.True(t, ok)
	assert.Equal(t, "chat:donor:7|patient:3", room)

	_, ok = roomFromChannel("other:channel")
	assert.False(t, ok)

	_, ok = roomFromChannel(channelPrefix)
	assert.False(t, ok)
}

// Needs a live redis; set LIFELINK_TEST_REDIS_ADDR to run.
func TestRedisBroker_RoundTrip(t *testing.T) {
	addr := os.Getenv("LIFELINK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LIFELINK_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	fanout := &recordingFanout{}
	b := NewRedisBroker(client, fanout, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Subscribe(ctx))
	defer b.Close()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.NoError(t, b.Publish(ctx, "D1-P1", []byte("hello")))
	require.Eventually(t, func() bool { return fanout.count() > 0 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	fanout.mu.Lock()
	defer fanout.mu.Unlock()
	assert.Equal(t, "D1-P1", fanout.rooms[0])
	assert.Equal(t, "hello", fanout.data[0])
}

func TestRedisBroker_SubscribeFailureIsReturned(t *testing.T) {
	// Nothing listens on port 1, so the subscription can never be confirmed.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	fanout := &recordingFanout{}
	b := NewRedisBroker(client, fanout, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.Error(t, b.Subscribe(ctx))
	assert.ErrorIs(t, b.Run(ctx), ErrNotSubscribed)
	assert.NoError(t, b.Close())
	assert.Equal(t, 0, fanout.count())
}
