package bridge

import (
	"context"

	"github.com/nimbusrelay/signalrelay/internal/v1/signal"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

// Noop is used whenever REDIS_URL is unset or the bridge has degraded
// after exhausting its connection retries. Every call is a no-op.
type Noop struct{}

var _ Bridge = Noop{}

func (Noop) Subscribe(ctx context.Context, roomID types.RoomID) error { return nil }

func (Noop) Unsubscribe(roomID types.RoomID) {}

func (Noop) Publish(ctx context.Context, roomID types.RoomID, env *signal.Envelope) error {
	return nil
}

func (Noop) SetInbound(handler InboundHandler) {}
