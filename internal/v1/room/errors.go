package room

import "errors"

var (
	// ErrUnknownRoom is logged when an inbound bridge signal names a room
	// this instance has no local record of.
	ErrUnknownRoom = errors.New("room: unknown room")
	// ErrUnknownClient is logged when a message targets a client ID with
	// no local record and no bridge fallback applies.
	ErrUnknownClient = errors.New("room: unknown client")
	// ErrSessionNotOpen marks a delivery that fell back to the message
	// cache because the target session could not accept a write.
	ErrSessionNotOpen = errors.New("room: session not open")
)
