package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc, err := NewService(context.Background(), mr.Addr(), "")
	require.NoError(t, err)

	return svc, mr
}

func TestNewService_ConnectsAndPings(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	assert.NotNil(t, svc.Client())
	assert.NoError(t, svc.Ping(context.Background()))
}

func TestNewService_FailsAfterRetries(t *testing.T) {
	start := time.Now()
	_, err := NewService(context.Background(), "127.0.0.1:1", "")
	elapsed := time.Since(start)

	assert.Error(t, err)
	// base 500ms + 1000 + 1500 + 2000 = 5000ms across 4 waits (5 attempts)
	assert.GreaterOrEqual(t, elapsed, 4*time.Second)
}

func TestPublishAndSubscribe(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan []byte, 1)
	svc.Subscribe(ctx, "room-1", func(data []byte) {
		received <- data
	})

	time.Sleep(50 * time.Millisecond)

	err := svc.Publish(context.Background(), "room-1", []byte(`{"type":"join"}`))
	require.NoError(t, err)

	select {
	case data := <-received:
		assert.JSONEq(t, `{"type":"join"}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestSubscribe_StopsOnContextCancel(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx, cancel := context.WithCancel(context.Background())

	called := make(chan struct{}, 1)
	svc.Subscribe(ctx, "room-2", func(data []byte) {
		called <- struct{}{}
	})

	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)

	// Publishing after cancellation should not reach the handler.
	_ = svc.Publish(context.Background(), "room-2", []byte(`{}`))

	select {
	case <-called:
		t.Fatal("handler invoked after subscription cancelled")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPublish_CircuitBreakerDegradesGracefully(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()

	mr.Close()

	for i := 0; i < 10; i++ {
		_ = svc.Publish(context.Background(), "room-3", []byte(`{}`))
	}

	err := svc.Publish(context.Background(), "room-3", []byte(`{}`))
	assert.NoError(t, err, "an open breaker should turn publish into a no-op")
}

func TestNilService_IsSafeNoop(t *testing.T) {
	var svc *Service

	assert.Nil(t, svc.Client())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Publish(context.Background(), "r", []byte(`{}`)))
	assert.NoError(t, svc.Close())
	svc.Subscribe(context.Background(), "r", func([]byte) {})
}
