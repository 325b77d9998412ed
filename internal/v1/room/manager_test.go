package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusrelay/signalrelay/internal/v1/bridge"
	"github.com/nimbusrelay/signalrelay/internal/v1/signal"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

func newTestManager(linger time.Duration) (*Manager, *capturingBridge) {
	b := &capturingBridge{}
	m := NewManager(b, ManagerConfig{MessageCacheCapacity: 8, RoomSubscriptionLinger: linger})
	return m, b
}

func TestManager_GetOrCreateRoomIsIdempotent(t *testing.T) {
	m, _ := newTestManager(time.Second)
	ctx := context.Background()

	r1 := m.GetOrCreateRoom(ctx, "room-1", "pw")
	r2 := m.GetOrCreateRoom(ctx, "room-1", "different-pw")

	assert.Same(t, r1, r2)
	assert.Equal(t, "pw", r1.PasswordHash())
}

func TestManager_RoomDestroyedAfterLingerWhenEmpty(t *testing.T) {
	m, _ := newTestManager(20 * time.Millisecond)
	ctx := context.Background()

	r := m.GetOrCreateRoom(ctx, "room-1", "pw")
	alice := newFakeSession("room-1")
	r.Join(ctx, types.ClientDescriptor{ClientID: "alice"}, alice)
	r.Leave(ctx, "alice")

	_, ok := m.LookupRoom("room-1")
	require.True(t, ok, "room should still exist during the linger window")

	require.Eventually(t, func() bool {
		_, ok := m.LookupRoom("room-1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestManager_ReconnectWithinLingerCancelsDestruction(t *testing.T) {
	m, _ := newTestManager(50 * time.Millisecond)
	ctx := context.Background()

	r := m.GetOrCreateRoom(ctx, "room-1", "pw")
	alice := newFakeSession("room-1")
	r.Join(ctx, types.ClientDescriptor{ClientID: "alice"}, alice)
	r.Leave(ctx, "alice")

	time.Sleep(10 * time.Millisecond)
	same := m.GetOrCreateRoom(ctx, "room-1", "pw")
	assert.Same(t, r, same)

	time.Sleep(80 * time.Millisecond)
	_, ok := m.LookupRoom("room-1")
	assert.True(t, ok, "room should survive once its pending destruction was cancelled")
}

func TestManager_HandleInboundRoutesJoinToLocalRoom(t *testing.T) {
	m, _ := newTestManager(time.Second)
	ctx := context.Background()

	r := m.GetOrCreateRoom(ctx, "room-1", "pw")
	observer := newFakeSession("room-1")
	r.Join(ctx, types.ClientDescriptor{ClientID: "observer"}, observer)
	_ = observer.messages()

	env, err := signal.Encode(signal.TypeJoin, types.ClientDescriptor{ClientID: "remote-a"})
	require.NoError(t, err)
	decoded, err := signal.Decode(env)
	require.NoError(t, err)

	m.handleInbound("room-1", decoded)

	require.Len(t, observer.messages(), 1)
}

func TestManager_HandleInboundDropsUnknownRoom(t *testing.T) {
	m, _ := newTestManager(time.Second)

	env, err := signal.Encode(signal.TypeJoin, types.ClientDescriptor{ClientID: "remote-a"})
	require.NoError(t, err)
	decoded, err := signal.Decode(env)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.handleInbound("nonexistent-room", decoded)
	})
}

func TestManager_ShutdownClosesEverySession(t *testing.T) {
	m, _ := newTestManager(time.Second)
	ctx := context.Background()

	r1 := m.GetOrCreateRoom(ctx, "room-1", "pw")
	r2 := m.GetOrCreateRoom(ctx, "room-2", "pw")

	a := newFakeSession("room-1")
	r1.Join(ctx, types.ClientDescriptor{ClientID: "a"}, a)
	b := newFakeSession("room-2")
	r2.Join(ctx, types.ClientDescriptor{ClientID: "b"}, b)

	m.Shutdown()

	assert.False(t, a.IsOpen())
	assert.False(t, b.IsOpen())
}

var _ bridge.Bridge = (*capturingBridge)(nil)
