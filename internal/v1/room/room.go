// Package room holds the per-room client registry and fan-out router:
// the engine that turns join/leave/message/ping/pong signals, whether
// locally received or arriving from the distribution bridge, into
// writes against the client records that belong to this instance.
package room

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nimbusrelay/signalrelay/internal/v1/bridge"
	"github.com/nimbusrelay/signalrelay/internal/v1/logging"
	"github.com/nimbusrelay/signalrelay/internal/v1/metrics"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

// Room owns the client records for one room ID. A room's own mutex is
// never held across a session write or a bridge call; callers take a
// snapshot of the records they need to touch, release the lock, then
// perform I/O.
type Room struct {
	id            types.RoomID
	mu            sync.Mutex
	clients       map[types.ClientID]*Record
	passwordHash  string
	cacheCapacity int
	bridge        bridge.Bridge
	onEmpty       func(types.RoomID)
	shuttingDown  bool
}

func newRoom(id types.RoomID, passwordHash string, cacheCapacity int, b bridge.Bridge, onEmpty func(types.RoomID)) *Room {
	return &Room{
		id:            id,
		clients:       make(map[types.ClientID]*Record),
		passwordHash:  passwordHash,
		cacheCapacity: cacheCapacity,
		bridge:        b,
		onEmpty:       onEmpty,
	}
}

func (r *Room) ID() types.RoomID { return r.id }

// PasswordHash returns the hash captured from whichever client first
// created the room. It never changes afterward.
func (r *Room) PasswordHash() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passwordHash
}

func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients) == 0
}

func (r *Room) participantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Room) recordMetricCount() {
	count := r.participantCount()
	if count == 0 {
		metrics.RoomParticipants.DeleteLabelValues(string(r.id))
		return
	}
	metrics.RoomParticipants.WithLabelValues(string(r.id)).Set(float64(count))
}

// JoinResult reports what Join actually did: whether it resumed a record
// in its grace window, and which prior record it evicted, if any. The
// bootstrap roster is sent by FanOutJoin on a fresh install only.
type JoinResult struct {
	Resumed      bool
	EvictedPrior *types.ClientDescriptor
}

// Join installs desc/session as a client record, implementing the
// Opening-state transition table: a resuming session in its grace
// window is rebound and flushed; any other prior record under the same
// client ID is evicted and announced as a leave before the new record
// replaces it.
func (r *Room) Join(ctx context.Context, desc types.ClientDescriptor, session types.SessionHandle) JoinResult {
	r.mu.Lock()
	existing, hadExisting := r.clients[desc.ClientID]

	if hadExisting && desc.Resume && existing.inGraceTimeout() {
		r.mu.Unlock()
		cached := existing.rebind(session)
		metrics.GraceReconnects.WithLabelValues("resumed").Inc()
		for _, frame := range cached {
			session.Send(frame)
		}
		return JoinResult{Resumed: true}
	}

	var evicted *types.ClientDescriptor
	if hadExisting {
		existing.cancelGraceTimer()
		d := existing.Descriptor
		evicted = &d
		delete(r.clients, desc.ClientID)
	}

	r.clients[desc.ClientID] = newRecord(desc, session, r.cacheCapacity)
	r.mu.Unlock()

	r.recordMetricCount()

	if evicted != nil {
		r.FanOutLeave(ctx, *evicted, true)
	}
	r.FanOutJoin(ctx, desc, session, true)

	return JoinResult{EvictedPrior: evicted}
}

// Leave evicts clientID's record, announces the departure to the rest
// of the room, and closes its session. Used for an explicit inbound
// `leave` signal, which per the connection state machine always ends
// in a server-initiated close.
func (r *Room) Leave(ctx context.Context, clientID types.ClientID) {
	r.mu.Lock()
	rec, ok := r.clients[clientID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.evictAndAnnounce(ctx, clientID, rec, true)
}

// BeginGrace starts clientID's disconnect grace timer after its socket
// drops without an explicit leave. A no-op if the room is shutting
// down or the client has no record.
func (r *Room) BeginGrace(clientID types.ClientID, timeout time.Duration) {
	r.mu.Lock()
	if r.shuttingDown {
		r.mu.Unlock()
		return
	}
	rec, ok := r.clients[clientID]
	r.mu.Unlock()
	if !ok {
		return
	}

	rec.startGraceTimer(timeout, func() {
		r.handleGraceExpiry(context.Background(), clientID, rec)
	})
}

// handleGraceExpiry fires when a disconnect timer elapses. It
// double-checks that a grace timer is still pending on rec (it may
// have been cancelled by a resume, or the record may have been replaced
// entirely by a fresh install) before evicting.
func (r *Room) handleGraceExpiry(ctx context.Context, clientID types.ClientID, rec *Record) {
	if !rec.inGraceTimeout() {
		return
	}

	r.mu.Lock()
	current, ok := r.clients[clientID]
	if !ok || current != rec {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	metrics.GraceReconnects.WithLabelValues("expired").Inc()
	r.evictAndAnnounce(ctx, clientID, rec, false)
}

func (r *Room) evictAndAnnounce(ctx context.Context, clientID types.ClientID, rec *Record, closeSocket bool) {
	r.mu.Lock()
	current, ok := r.clients[clientID]
	if !ok || current != rec {
		r.mu.Unlock()
		return
	}
	rec.cancelGraceTimer()
	delete(r.clients, clientID)
	isEmpty := len(r.clients) == 0
	r.mu.Unlock()

	r.recordMetricCount()
	r.FanOutLeave(ctx, rec.Descriptor, true)

	if closeSocket {
		if session := rec.currentSession(); session != nil {
			session.Close()
		}
	}

	if isEmpty && r.onEmpty != nil {
		r.onEmpty(r.id)
	}
}

// TouchLiveness records a ping or pong from clientID as proof of life.
func (r *Room) TouchLiveness(clientID types.ClientID) {
	r.mu.Lock()
	rec, ok := r.clients[clientID]
	r.mu.Unlock()
	if ok {
		rec.touchPong()
	}
}

// sweepLiveness pings every open local session and closes any whose
// last pong is older than timeout. Called once per heartbeat tick.
func (r *Room) sweepLiveness(ctx context.Context, pingFrame []byte, timeout time.Duration) {
	r.mu.Lock()
	recs := make([]*Record, 0, len(r.clients))
	for _, rec := range r.clients {
		recs = append(recs, rec)
	}
	r.mu.Unlock()

	for _, rec := range recs {
		session := rec.currentSession()
		if session == nil || !session.IsOpen() {
			continue
		}
		if rec.sinceLastPong() > timeout {
			logging.Info(ctx, "room: closing unresponsive session",
				zap.String("room_id", string(r.id)), zap.String("client_id", string(rec.Descriptor.ClientID)))
			session.Close()
			continue
		}
		session.Send(pingFrame)
	}
}

// CloseAll closes every local session without starting grace timers,
// for use during process shutdown.
func (r *Room) CloseAll() {
	r.mu.Lock()
	r.shuttingDown = true
	recs := make([]*Record, 0, len(r.clients))
	for _, rec := range r.clients {
		recs = append(recs, rec)
	}
	r.mu.Unlock()

	for _, rec := range recs {
		rec.cancelGraceTimer()
		if session := rec.currentSession(); session != nil {
			session.Close()
		}
	}
}
