package room

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nimbusrelay/signalrelay/internal/v1/bridge"
	"github.com/nimbusrelay/signalrelay/internal/v1/logging"
	"github.com/nimbusrelay/signalrelay/internal/v1/metrics"
	"github.com/nimbusrelay/signalrelay/internal/v1/signal"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

// ManagerConfig carries the tunables a Manager needs beyond the bridge
// it's wired to.
type ManagerConfig struct {
	MessageCacheCapacity   int
	RoomSubscriptionLinger time.Duration
}

// Manager owns the room registry: it creates rooms on first connect,
// destroys them after a linger window once empty, and re-enters
// bridge-delivered signals into the right room's router.
type Manager struct {
	mu      sync.Mutex
	rooms   map[types.RoomID]*Room
	pending map[types.RoomID]*time.Timer
	bridge  bridge.Bridge
	cfg     ManagerConfig
}

func NewManager(b bridge.Bridge, cfg ManagerConfig) *Manager {
	m := &Manager{
		rooms:   make(map[types.RoomID]*Room),
		pending: make(map[types.RoomID]*time.Timer),
		bridge:  b,
		cfg:     cfg,
	}
	b.SetInbound(m.handleInbound)
	return m
}

// GetOrCreateRoom returns the room for roomID, creating it (and
// subscribing it on the bridge) if this is the first client to ask for
// it. initialPasswordHash is captured only on creation. A pending
// destruction is cancelled if one was scheduled.
func (m *Manager) GetOrCreateRoom(ctx context.Context, roomID types.RoomID, initialPasswordHash string) *Room {
	m.mu.Lock()
	if r, ok := m.rooms[roomID]; ok {
		if timer, pending := m.pending[roomID]; pending {
			timer.Stop()
			delete(m.pending, roomID)
		}
		m.mu.Unlock()
		return r
	}

	r := newRoom(roomID, initialPasswordHash, m.cfg.MessageCacheCapacity, m.bridge, m.scheduleDestroyIfEmpty)
	m.rooms[roomID] = r
	m.mu.Unlock()

	metrics.ActiveRooms.Inc()
	if err := m.bridge.Subscribe(ctx, roomID); err != nil {
		logging.Warn(ctx, "room: bridge subscribe failed", zap.String("room_id", string(roomID)), zap.Error(err))
	}
	return r
}

func (m *Manager) LookupRoom(roomID types.RoomID) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// scheduleDestroyIfEmpty starts a linger timer once a room's last local
// client departs. The room stays subscribed on the bridge for the
// duration, so a reconnect within the window finds it already there.
func (m *Manager) scheduleDestroyIfEmpty(roomID types.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok || !r.IsEmpty() {
		return
	}
	if _, pending := m.pending[roomID]; pending {
		return
	}

	m.pending[roomID] = time.AfterFunc(m.cfg.RoomSubscriptionLinger, func() {
		m.finalizeDestroy(roomID)
	})
}

func (m *Manager) finalizeDestroy(roomID types.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, roomID)
	r, ok := m.rooms[roomID]
	if !ok || !r.IsEmpty() {
		return
	}

	delete(m.rooms, roomID)
	m.bridge.Unsubscribe(roomID)
	metrics.ActiveRooms.Dec()
	metrics.RoomParticipants.DeleteLabelValues(string(roomID))
}

func (m *Manager) roomsSorted() []*Room {
	m.mu.Lock()
	ids := make([]types.RoomID, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	rooms := make([]*Room, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, m.rooms[id])
	}
	m.mu.Unlock()
	return rooms
}

// handleInbound is the bridge's InboundHandler: it re-enters a
// remotely-published signal into the named room's router with
// local=false. Connected/ping/pong never travel the bridge and are
// ignored if somehow received.
func (m *Manager) handleInbound(roomID types.RoomID, env *signal.Envelope) {
	r, ok := m.LookupRoom(roomID)
	if !ok {
		logging.Warn(context.Background(), "room: dropping inbound signal for unknown room",
			zap.String("room_id", string(roomID)), zap.Error(ErrUnknownRoom))
		return
	}

	ctx := context.Background()
	switch env.Type {
	case signal.TypeJoin:
		desc, err := env.Descriptor()
		if err != nil {
			logging.Warn(ctx, "room: malformed inbound join", zap.Error(err))
			return
		}
		r.FanOutJoin(ctx, desc, nil, false)
	case signal.TypeLeave:
		desc, err := env.Descriptor()
		if err != nil {
			logging.Warn(ctx, "room: malformed inbound leave", zap.Error(err))
			return
		}
		r.FanOutLeave(ctx, desc, false)
	case signal.TypeMessage:
		msg, err := env.Message()
		if err != nil {
			logging.Warn(ctx, "room: malformed inbound message", zap.Error(err))
			return
		}
		r.RouteMessage(ctx, env, msg, false)
	}
}

// Shutdown closes every local session in every room, in deterministic
// room-ID order, without starting grace timers.
func (m *Manager) Shutdown() {
	for _, r := range m.roomsSorted() {
		r.CloseAll()
	}
}
