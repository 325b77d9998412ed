// Package metrics declares the Prometheus collectors exported by the relay.
//
// Naming convention: namespace_subsystem_name
//   - namespace: signalrelay (application-level grouping)
//   - subsystem: websocket, room, bridge (feature-level grouping)
//   - name: specific metric (connections_active, events_total, etc.)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the current number of open WebSocket sessions.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signalrelay",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of rooms held by the manager.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signalrelay",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of rooms held by the manager",
	})

	// RoomParticipants tracks the number of client records in each room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signalrelay",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of client records in each room",
	}, []string{"room_id"})

	// SignalEvents counts processed signal envelopes by type and outcome.
	SignalEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalrelay",
		Subsystem: "websocket",
		Name:      "signal_events_total",
		Help:      "Total signal envelopes processed, by type and outcome",
	}, []string{"signal_type", "status"})

	// MessageProcessingDuration times how long the router spends handling a
	// single inbound signal.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signalrelay",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent routing a single signal envelope",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"signal_type"})

	// GraceReconnects counts sessions that reconnected within the grace
	// window versus ones that were evicted after it elapsed.
	GraceReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalrelay",
		Subsystem: "room",
		Name:      "grace_reconnects_total",
		Help:      "Client records that resumed or expired during the disconnect grace period",
	}, []string{"outcome"})

	// CachedMessagesDropped counts message-cache entries dropped because a
	// record's cache reached capacity.
	CachedMessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signalrelay",
		Subsystem: "room",
		Name:      "cached_messages_dropped_total",
		Help:      "Messages dropped from a client record's cache because it reached capacity",
	})

	// CircuitBreakerState reports the state of the distribution bridge's
	// circuit breaker. 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signalrelay",
		Subsystem: "bridge",
		Name:      "circuit_breaker_state",
		Help:      "State of the distribution bridge circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures counts operations rejected outright because
	// the circuit breaker was open.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalrelay",
		Subsystem: "bridge",
		Name:      "circuit_breaker_rejections_total",
		Help:      "Operations rejected because the circuit breaker was open",
	}, []string{"service"})

	// BridgeOperationsTotal counts bridge publish/subscribe operations by
	// outcome.
	BridgeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalrelay",
		Subsystem: "bridge",
		Name:      "operations_total",
		Help:      "Total distribution bridge operations",
	}, []string{"operation", "status"})

	// BridgeOperationDuration times bridge round-trips.
	BridgeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signalrelay",
		Subsystem: "bridge",
		Name:      "operation_duration_seconds",
		Help:      "Duration of distribution bridge operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// IncConnection records a session transitioning to open.
func IncConnection() {
	ActiveConnections.Inc()
}

// DecConnection records a session closing permanently.
func DecConnection() {
	ActiveConnections.Dec()
}
