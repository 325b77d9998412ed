package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nimbusrelay/signalrelay/internal/v1/logging"
	"github.com/nimbusrelay/signalrelay/internal/v1/metrics"
	"github.com/nimbusrelay/signalrelay/internal/v1/room"
	"github.com/nimbusrelay/signalrelay/internal/v1/signal"
	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

const textMessageType = websocket.TextMessage

// Hub terminates the WebSocket upgrade and hands each connection's
// lifecycle to the room it belongs to.
type Hub struct {
	manager           *room.Manager
	upgrader          websocket.Upgrader
	pongTimeout       time.Duration
	disconnectTimeout time.Duration
}

func NewHub(manager *room.Manager, pongTimeout, disconnectTimeout time.Duration) *Hub {
	return &Hub{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
			Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			},
		},
		pongTimeout:       pongTimeout,
		disconnectTimeout: disconnectTimeout,
	}
}

// ServeWs upgrades the request and joins the connection to the room
// named by the `room` query parameter. `pwd` seeds the room's password
// hash if this connection is the one that creates it. Returns 400 if
// `room` is missing; a failed upgrade is answered with 404 Not Found by
// the upgrader's Error handler set in NewHub.
func (h *Hub) ServeWs(c *gin.Context) {
	roomParam := c.Query("room")
	if roomParam == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	roomID := types.RoomID(roomParam)
	pwd := c.Query("pwd")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "transport: websocket upgrade failed",
			zap.String("room_id", string(roomID)), zap.Error(err))
		return
	}

	// The connection outlives this handler call, so its context must
	// carry the correlation ID forward without inheriting the request's
	// cancellation (c.Request.Context() is canceled as soon as ServeWs
	// returns, even though the hijacked socket stays open).
	ctx := context.Background()
	if correlationID := c.GetString(string(logging.CorrelationIDKey)); correlationID != "" {
		ctx = context.WithValue(ctx, logging.CorrelationIDKey, correlationID)
	}

	r := h.manager.GetOrCreateRoom(ctx, roomID, pwd)
	client := newClient(conn, roomID, r.PasswordHash())

	metrics.IncConnection()
	go h.serve(ctx, r, client)
}

func (h *Hub) serve(ctx context.Context, r *room.Room, client *Client) {
	defer metrics.DecConnection()

	go client.writePump()

	var hash *string
	if pw := r.PasswordHash(); pw != "" {
		hash = &pw
	}
	if frame, err := signal.Encode(signal.TypeConnected, hash); err == nil {
		client.Send(frame)
	}

	h.readPump(ctx, r, client)
}

// readPump owns one connection's state machine: it tracks whether the
// session has identified itself yet and forwards decoded envelopes to
// the room's router. It returns whenever the socket errors or the peer
// sends an explicit leave; on a socket error after a join it starts the
// disconnect grace timer (after a leave the record is already evicted,
// so no timer starts).
func (h *Hub) readPump(ctx context.Context, r *room.Room, client *Client) {
	var clientID types.ClientID
	var joined bool

	defer func() {
		client.Close()
		if joined {
			r.BeginGrace(clientID, h.disconnectTimeout)
		}
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	client.conn.SetPongHandler(func(string) error {
		_ = client.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
		if joined {
			r.TouchLiveness(clientID)
		}
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		// The protocol only ever pongs at the application level (a
		// browser can't send a WebSocket control pong from JS), so the
		// gorilla pong handler above never fires in practice. Any
		// successful read, not just a control pong, proves the peer is
		// alive and earns it a fresh deadline.
		_ = client.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))

		env, err := signal.Decode(raw)
		if err != nil {
			metrics.SignalEvents.WithLabelValues("unknown", "malformed").Inc()
			logging.Warn(ctx, "transport: dropping malformed frame", zap.Error(err))
			continue
		}

		start := time.Now()

		switch env.Type {
		case signal.TypeJoin:
			desc, err := env.Descriptor()
			if err != nil {
				logging.Warn(ctx, "transport: malformed join payload", zap.Error(err))
				continue
			}
			clientID = desc.ClientID
			joined = true
			r.Join(ctx, desc, client)
			metrics.SignalEvents.WithLabelValues("join", "ok").Inc()

		case signal.TypeLeave:
			if !joined {
				continue
			}
			r.Leave(ctx, clientID)
			metrics.SignalEvents.WithLabelValues("leave", "ok").Inc()
			metrics.MessageProcessingDuration.WithLabelValues(string(env.Type)).Observe(time.Since(start).Seconds())
			return

		case signal.TypeMessage:
			if !joined {
				continue
			}
			msg, err := env.Message()
			if err != nil {
				logging.Warn(ctx, "transport: malformed message payload", zap.Error(err))
				continue
			}
			r.RouteMessage(ctx, env, msg, true)
			metrics.SignalEvents.WithLabelValues("message", "ok").Inc()

		case signal.TypePing, signal.TypePong:
			if joined {
				r.TouchLiveness(clientID)
			}

		default:
			// `connected` is server-to-client only; ignore if somehow received.
		}

		metrics.MessageProcessingDuration.WithLabelValues(string(env.Type)).Observe(time.Since(start).Seconds())
	}
}

// Shutdown closes every session across every room without starting
// grace timers, for use during graceful process shutdown.
func (h *Hub) Shutdown() {
	h.manager.Shutdown()
}
