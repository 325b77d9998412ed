package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nimbusrelay/signalrelay/internal/v1/logging"
	"github.com/nimbusrelay/signalrelay/internal/v1/signal"
)

// Supervisor runs a single periodic liveness sweep across every room
// a Manager holds, pinging open sessions and closing ones that have
// gone quiet past the pong timeout.
type Supervisor struct {
	manager  *Manager
	interval time.Duration
	timeout  time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSupervisor(m *Manager, interval, timeout time.Duration) *Supervisor {
	return &Supervisor{
		manager:  m,
		interval: interval,
		timeout:  timeout,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks, sweeping every interval until ctx is cancelled or Stop is
// called. Intended to run in its own goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop signals Run to exit and blocks until it has.
func (s *Supervisor) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Supervisor) sweep(ctx context.Context) {
	pingFrame, err := signal.EncodeBare(signal.TypePing)
	if err != nil {
		logging.Error(ctx, "room: failed to encode ping frame", zap.Error(err))
		return
	}
	for _, r := range s.manager.roomsSorted() {
		r.sweepLiveness(ctx, pingFrame, s.timeout)
	}
}
