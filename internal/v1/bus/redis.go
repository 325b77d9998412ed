// Package bus provides the Redis pub/sub transport backing the
// distribution bridge. It knows nothing about signal envelopes; it
// moves raw bytes over named channels.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/nimbusrelay/signalrelay/internal/v1/metrics"
)

const (
	connectBackoffBase = 500 * time.Millisecond
	connectMaxAttempts = 5
)

// Service wraps a Redis client used as the relay's distribution bus. A
// nil *Service behaves as a permanently disabled bus: every method is a
// safe no-op, matching single-instance mode.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client, primarily for tests.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService connects to addr, retrying with a linearly growing backoff
// (500ms, +500ms per attempt) up to 5 attempts before giving up. The
// caller is expected to degrade to a no-op bridge on error, per the
// bridge's "PubSubUnavailable" failure mode.
func NewService(ctx context.Context, addr, password string) (*Service, error) {
	var rdb *redis.Client
	var lastErr error

	for attempt := 1; attempt <= connectMaxAttempts; attempt++ {
		rdb = redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           0,
			DialTimeout:  10 * time.Second,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			lastErr = nil
			break
		}

		lastErr = err
		_ = rdb.Close()
		rdb = nil

		if attempt < connectMaxAttempts {
			backoff := time.Duration(attempt) * connectBackoffBase
			slog.Warn("bus: connect attempt failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if rdb == nil {
		return nil, fmt.Errorf("bus: failed to connect to redis after %d attempts: %w", connectMaxAttempts, lastErr)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	slog.Info("bus: connected to redis", "addr", addr)
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

func channelFor(roomID string) string {
	return "room:" + roomID
}

// Publish publishes raw bytes to the room's channel. Circuit-breaker
// rejection degrades to a logged no-op rather than propagating an
// error to the caller, matching the bridge's publish-failure policy.
func (s *Service) Publish(ctx context.Context, roomID string, data []byte) error {
	if s == nil || s.client == nil {
		return nil
	}

	start := time.Now()
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Publish(ctx, channelFor(roomID), data).Err()
	})
	metrics.BridgeOperationDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.BridgeOperationsTotal.WithLabelValues("publish", "error").Inc()
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			slog.Warn("bus: circuit breaker open, dropping publish", "roomId", roomID)
			return nil
		}
		slog.Error("bus: publish failed", "roomId", roomID, "error", err)
		return err
	}

	metrics.BridgeOperationsTotal.WithLabelValues("publish", "ok").Inc()
	return nil
}

// Subscribe starts a background goroutine that invokes handler for
// every message received on the room's channel, until ctx is
// cancelled. It is the caller's responsibility to avoid blocking
// inside handler.
func (s *Service) Subscribe(ctx context.Context, roomID string, handler func(data []byte)) {
	if s == nil || s.client == nil {
		return
	}

	channel := channelFor(roomID)
	pubsub := s.client.Subscribe(ctx, channel)

	go func() {
		defer pubsub.Close()

		slog.Info("bus: subscribed", "channel", channel)
		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					slog.Warn("bus: subscription channel closed", "channel", channel)
					return
				}
				metrics.BridgeOperationsTotal.WithLabelValues("inbound", "ok").Inc()
				handler([]byte(msg.Payload))
			}
		}
	}()
}

// Ping verifies Redis connectivity. Used by readiness checks.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	if err != nil && err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
	}
	return err
}

// Close gracefully shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
