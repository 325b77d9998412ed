package room

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/nimbusrelay/signalrelay/internal/v1/logging"
	"github.com/nimbusrelay/signalrelay/internal/v1/signal"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

func envelopeFor(t signal.Type, v any) (*signal.Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &signal.Envelope{Type: t, Data: raw}, nil
}

func (r *Room) snapshotOthers(excludeID types.ClientID) []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	others := make([]*Record, 0, len(r.clients))
	for id, rec := range r.clients {
		if id != excludeID {
			others = append(others, rec)
		}
	}
	return others
}

// FanOutJoin delivers desc's join to every other local record. When the
// signal originated locally, the new session also receives a bootstrap
// roster — one synthesized join per existing record — and the join is
// published to the bridge so other instances learn about it too.
// newSession is nil for a join that arrived from the bridge.
func (r *Room) FanOutJoin(ctx context.Context, desc types.ClientDescriptor, newSession types.SessionHandle, local bool) {
	env, err := envelopeFor(signal.TypeJoin, desc)
	if err != nil {
		logging.Error(ctx, "room: failed to encode join envelope", zap.Error(err))
		return
	}
	frame, err := json.Marshal(env)
	if err != nil {
		logging.Error(ctx, "room: failed to marshal join envelope", zap.Error(err))
		return
	}

	others := r.snapshotOthers(desc.ClientID)
	for _, rec := range others {
		rec.deliver(frame)
	}

	if !local {
		return
	}

	if newSession != nil {
		for _, rec := range others {
			bootstrap, err := signal.Encode(signal.TypeJoin, rec.snapshotDescriptor())
			if err != nil {
				continue
			}
			newSession.Send(bootstrap)
		}
	}

	if err := r.bridge.Publish(ctx, r.id, env); err != nil {
		logging.Warn(ctx, "room: bridge publish failed for join", zap.String("room_id", string(r.id)), zap.Error(err))
	}
}

// FanOutLeave delivers desc's leave to every remaining local record,
// and publishes it to the bridge when the departure originated locally.
func (r *Room) FanOutLeave(ctx context.Context, desc types.ClientDescriptor, local bool) {
	env, err := envelopeFor(signal.TypeLeave, desc)
	if err != nil {
		logging.Error(ctx, "room: failed to encode leave envelope", zap.Error(err))
		return
	}
	frame, err := json.Marshal(env)
	if err != nil {
		logging.Error(ctx, "room: failed to marshal leave envelope", zap.Error(err))
		return
	}

	for _, rec := range r.snapshotOthers(desc.ClientID) {
		rec.deliver(frame)
	}

	if !local {
		return
	}
	if err := r.bridge.Publish(ctx, r.id, env); err != nil {
		logging.Warn(ctx, "room: bridge publish failed for leave", zap.String("room_id", string(r.id)), zap.Error(err))
	}
}

// RouteMessage delivers a point-to-point message envelope to its
// target. A target with a local record is written directly (or
// cached); a locally-originated message with no local target falls
// back to the bridge; a remotely-originated message with no local
// target is simply unroutable here and is dropped with a log line. A
// message is never delivered back to its own sender.
func (r *Room) RouteMessage(ctx context.Context, env *signal.Envelope, msg signal.MessagePayload, local bool) {
	if msg.TargetClientID == msg.ClientID {
		return
	}

	r.mu.Lock()
	target, ok := r.clients[msg.TargetClientID]
	r.mu.Unlock()

	if ok {
		frame, err := json.Marshal(env)
		if err != nil {
			logging.Error(ctx, "room: failed to marshal message envelope", zap.Error(err))
			return
		}
		target.deliver(frame)
		return
	}

	if local {
		if err := r.bridge.Publish(ctx, r.id, env); err != nil {
			logging.Warn(ctx, "room: bridge publish failed for message", zap.String("room_id", string(r.id)), zap.Error(err))
		}
		return
	}

	logging.Warn(ctx, "room: message target not found locally",
		zap.String("room_id", string(r.id)), zap.String("target_client_id", string(msg.TargetClientID)), zap.Error(ErrUnknownClient))
}
