package room

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nimbusrelay/signalrelay/internal/v1/logging"
	"github.com/nimbusrelay/signalrelay/internal/v1/metrics"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

// Record is a room's bookkeeping for one locally-connected client: its
// advertised identity, its current session (if any), liveness tracking,
// a pending grace-period eviction timer, and a bounded cache of frames
// queued while the session is unavailable.
type Record struct {
	Descriptor types.ClientDescriptor

	mu              sync.Mutex
	session         types.SessionHandle
	lastPongTime    time.Time
	disconnectTimer *time.Timer
	cache           [][]byte
	cacheCapacity   int
	droppedOnce     bool
}

func newRecord(desc types.ClientDescriptor, session types.SessionHandle, cacheCapacity int) *Record {
	return &Record{
		Descriptor:    desc,
		session:       session,
		lastPongTime:  time.Now(),
		cacheCapacity: cacheCapacity,
	}
}

// deliver writes frame to the session if it's open, else queues it in
// the bounded cache. The session write happens outside the record lock.
func (rec *Record) deliver(frame []byte) {
	rec.mu.Lock()
	session := rec.session
	open := session != nil && session.IsOpen()
	if !open {
		rec.appendCacheLocked(frame)
		rec.mu.Unlock()
		return
	}
	rec.mu.Unlock()
	session.Send(frame)
}

func (rec *Record) appendCacheLocked(frame []byte) {
	if rec.cacheCapacity > 0 && len(rec.cache) >= rec.cacheCapacity {
		rec.cache = rec.cache[1:]
		metrics.CachedMessagesDropped.Inc()
		if !rec.droppedOnce {
			logging.Warn(context.Background(), "room: message cache full, dropping oldest entry",
				zap.String("client_id", string(rec.Descriptor.ClientID)), zap.Error(ErrSessionNotOpen))
			rec.droppedOnce = true
		}
	}
	rec.cache = append(rec.cache, frame)
}

func (rec *Record) inGraceTimeout() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.disconnectTimer != nil
}

// rebind attaches a new session to an existing record, cancels any
// pending grace timer, and returns the cached frames for the caller to
// flush in order.
func (rec *Record) rebind(session types.SessionHandle) [][]byte {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.disconnectTimer != nil {
		rec.disconnectTimer.Stop()
		rec.disconnectTimer = nil
	}
	rec.session = session
	cached := rec.cache
	rec.cache = nil
	return cached
}

func (rec *Record) startGraceTimer(d time.Duration, onFire func()) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.disconnectTimer != nil {
		rec.disconnectTimer.Stop()
	}
	rec.disconnectTimer = time.AfterFunc(d, onFire)
}

func (rec *Record) cancelGraceTimer() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.disconnectTimer != nil {
		rec.disconnectTimer.Stop()
		rec.disconnectTimer = nil
	}
}

func (rec *Record) currentSession() types.SessionHandle {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.session
}

func (rec *Record) snapshotDescriptor() types.ClientDescriptor {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.Descriptor
}

func (rec *Record) touchPong() {
	rec.mu.Lock()
	rec.lastPongTime = time.Now()
	rec.mu.Unlock()
}

func (rec *Record) sinceLastPong() time.Duration {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return time.Since(rec.lastPongTime)
}
