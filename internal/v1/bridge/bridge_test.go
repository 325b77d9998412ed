package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusrelay/signalrelay/internal/v1/bus"
	"github.com/nimbusrelay/signalrelay/internal/v1/signal"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

func TestNoop_AllCallsSucceedWithoutEffect(t *testing.T) {
	var b Bridge = Noop{}

	b.SetInbound(func(types.RoomID, *signal.Envelope) {})
	assert.NoError(t, b.Subscribe(context.Background(), "room-1"))
	assert.NoError(t, b.Publish(context.Background(), "room-1", &signal.Envelope{Type: signal.TypeJoin}))
	b.Unsubscribe("room-1")
}

func newTestRedisBridge(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc, err := bus.NewService(context.Background(), mr.Addr(), "")
	require.NoError(t, err)

	return NewRedis(svc), mr
}

func TestRedis_PublishNoopWhenNotSubscribed(t *testing.T) {
	b, mr := newTestRedisBridge(t)
	defer mr.Close()

	sub := b.svc.Client().Subscribe(context.Background(), "room:X")
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	err := b.Publish(context.Background(), "X", &signal.Envelope{Type: signal.TypeJoin})
	require.NoError(t, err)

	select {
	case <-sub.Channel():
		t.Fatal("expected no publish before subscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedis_SubscribeThenPublishDeliversToOtherInstance(t *testing.T) {
	b, mr := newTestRedisBridge(t)
	defer mr.Close()

	received := make(chan types.RoomID, 1)
	b.SetInbound(func(roomID types.RoomID, env *signal.Envelope) {
		received <- roomID
	})

	require.NoError(t, b.Subscribe(context.Background(), "X"))
	time.Sleep(50 * time.Millisecond)

	raw, err := signal.Encode(signal.TypeJoin, map[string]string{"clientId": "a"})
	require.NoError(t, err)
	require.NoError(t, b.svc.Publish(context.Background(), "X", raw))

	select {
	case roomID := <-received:
		assert.Equal(t, types.RoomID("X"), roomID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound delivery")
	}
}

func TestRedis_PublishAfterSubscribeReachesChannel(t *testing.T) {
	b, mr := newTestRedisBridge(t)
	defer mr.Close()

	require.NoError(t, b.Subscribe(context.Background(), "X"))
	time.Sleep(50 * time.Millisecond)

	sub := b.svc.Client().Subscribe(context.Background(), "room:X")
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	err := b.Publish(context.Background(), "X", &signal.Envelope{Type: signal.TypeLeave})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, "leave")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish")
	}
}

func TestRedis_UnsubscribeStopsPublish(t *testing.T) {
	b, mr := newTestRedisBridge(t)
	defer mr.Close()

	require.NoError(t, b.Subscribe(context.Background(), "X"))
	b.Unsubscribe("X")

	sub := b.svc.Client().Subscribe(context.Background(), "room:X")
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	err := b.Publish(context.Background(), "X", &signal.Envelope{Type: signal.TypeJoin})
	require.NoError(t, err)

	select {
	case <-sub.Channel():
		t.Fatal("expected no publish after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedis_SubscribeIsIdempotent(t *testing.T) {
	b, mr := newTestRedisBridge(t)
	defer mr.Close()

	require.NoError(t, b.Subscribe(context.Background(), "X"))
	require.NoError(t, b.Subscribe(context.Background(), "X"))

	assert.Len(t, b.cancels, 1)
}
