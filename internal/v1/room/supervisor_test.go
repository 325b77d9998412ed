package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

func TestSupervisor_PingsLiveSessionsAndClosesStaleOnes(t *testing.T) {
	m, _ := newTestManager(time.Second)
	ctx := context.Background()

	r := m.GetOrCreateRoom(ctx, "room-1", "pw")

	alive := newFakeSession("room-1")
	r.Join(ctx, types.ClientDescriptor{ClientID: "alive"}, alive)
	_ = alive.messages()

	stale := newFakeSession("room-1")
	r.Join(ctx, types.ClientDescriptor{ClientID: "stale"}, stale)
	_ = stale.messages()

	r.mu.Lock()
	r.clients["stale"].lastPongTime = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	sup := NewSupervisor(m, 10*time.Millisecond, 50*time.Millisecond)
	go sup.Run(ctx)
	defer sup.Stop()

	require.Eventually(t, func() bool {
		return !stale.IsOpen()
	}, time.Second, 5*time.Millisecond)

	assert.True(t, alive.IsOpen())
	require.NotEmpty(t, alive.messages())
}
