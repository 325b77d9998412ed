// Package bridge exposes the distribution bridge as a capability —
// subscribe/unsubscribe/publish plus an inbound callback — so the room
// engine has no conditional awareness of whether cross-instance
// distribution is configured.
package bridge

import (
	"context"
	"errors"

	"github.com/nimbusrelay/signalrelay/internal/v1/signal"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

// ErrPubSubUnavailable means the bridge could not reach its configured
// backend and has degraded to disabled for the lifetime of the
// process.
var ErrPubSubUnavailable = errors.New("bridge: pub/sub backend unavailable")

// InboundHandler receives an envelope that arrived from another
// instance via the bridge, along with the room it targets. The room
// engine re-enters it into the fan-out router with local=false.
type InboundHandler func(roomID types.RoomID, env *signal.Envelope)

// Bridge is the distribution capability consumed by the room engine.
type Bridge interface {
	// Subscribe registers interest in roomID's channel. Idempotent.
	Subscribe(ctx context.Context, roomID types.RoomID) error
	// Unsubscribe removes interest in roomID's channel. Idempotent.
	Unsubscribe(roomID types.RoomID)
	// Publish sends env to roomID's channel. A no-op unless roomID is
	// currently subscribed.
	Publish(ctx context.Context, roomID types.RoomID, env *signal.Envelope) error
	// SetInbound registers the callback invoked for messages arriving
	// from other instances. Must be called once before Subscribe.
	SetInbound(handler InboundHandler)
}
