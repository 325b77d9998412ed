// Package types defines identifiers and interfaces shared across the
// signal, bridge, room, and transport packages, so that each can use
// them without importing the package that consumes them.
package types

// ClientID identifies one peer within a room. It is supplied by the
// peer itself on join and never validated by the server.
type ClientID string

// RoomID identifies a room, taken verbatim from the `room` query
// parameter on the WebSocket upgrade request.
type RoomID string

// ClientDescriptor is the identity+metadata record a peer advertises on
// join. It is stored verbatim and never mutated by the server.
type ClientDescriptor struct {
	ClientID  ClientID `json:"clientId"`
	Name      string   `json:"name"`
	Avatar    string   `json:"avatar,omitempty"`
	CreatedAt int64    `json:"createdAt"`
	Resume    bool     `json:"resume,omitempty"`
}

// SessionHandle is the write-capable handle a client record holds on
// its underlying WebSocket connection. Implemented by transport.Client.
// A record treats the handle as a weak back-reference usable only while
// IsOpen reports true.
type SessionHandle interface {
	// Send enqueues a raw text frame for delivery to this session. It
	// must not block the router; implementations buffer internally.
	Send(frame []byte)
	// IsOpen reports whether the underlying connection can currently
	// accept writes.
	IsOpen() bool
	// Close initiates a server-side close of the underlying connection.
	Close()
	RoomID() RoomID
	PasswordHash() string
}
