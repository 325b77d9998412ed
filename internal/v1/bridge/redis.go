package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/nimbusrelay/signalrelay/internal/v1/bus"
	"github.com/nimbusrelay/signalrelay/internal/v1/logging"
	"github.com/nimbusrelay/signalrelay/internal/v1/signal"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

// Redis bridges room membership to a Redis pub/sub channel per room,
// named "room:{roomId}". It publishes only while the room is in its
// own subscription set, per spec.
type Redis struct {
	svc *bus.Service

	mu      sync.Mutex
	cancels map[types.RoomID]context.CancelFunc
	inbound InboundHandler
}

var _ Bridge = (*Redis)(nil)

// NewRedis wraps an already-connected bus.Service.
func NewRedis(svc *bus.Service) *Redis {
	return &Redis{
		svc:     svc,
		cancels: make(map[types.RoomID]context.CancelFunc),
	}
}

func (b *Redis) SetInbound(handler InboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbound = handler
}

func (b *Redis) Subscribe(ctx context.Context, roomID types.RoomID) error {
	b.mu.Lock()
	if _, ok := b.cancels[roomID]; ok {
		b.mu.Unlock()
		return nil
	}
	subCtx, cancel := context.WithCancel(ctx)
	b.cancels[roomID] = cancel
	b.mu.Unlock()

	b.svc.Subscribe(subCtx, string(roomID), func(data []byte) {
		env, err := signal.Decode(data)
		if err != nil {
			logging.Warn(context.Background(), "bridge: dropping malformed inbound frame",
				zap.String("room_id", string(roomID)), zap.Error(err))
			return
		}

		b.mu.Lock()
		handler := b.inbound
		b.mu.Unlock()

		if handler != nil {
			handler(roomID, env)
		}
	})

	return nil
}

func (b *Redis) Unsubscribe(roomID types.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cancel, ok := b.cancels[roomID]; ok {
		cancel()
		delete(b.cancels, roomID)
	}
}

func (b *Redis) Publish(ctx context.Context, roomID types.RoomID, env *signal.Envelope) error {
	b.mu.Lock()
	_, subscribed := b.cancels[roomID]
	b.mu.Unlock()
	if !subscribed {
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.svc.Publish(ctx, string(roomID), data)
}
