package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientID(t *testing.T) {
	id := ClientID("client-123")
	assert.Equal(t, "client-123", string(id))
}

func TestRoomID(t *testing.T) {
	id := RoomID("room-456")
	assert.Equal(t, "room-456", string(id))
}

func TestClientDescriptorFields(t *testing.T) {
	d := ClientDescriptor{
		ClientID:  "a",
		Name:      "Alice",
		Avatar:    "https://example.com/a.png",
		CreatedAt: 1700000000000,
		Resume:    true,
	}

	assert.Equal(t, ClientID("a"), d.ClientID)
	assert.Equal(t, "Alice", d.Name)
	assert.True(t, d.Resume)
}

func TestClientDescriptorEquality(t *testing.T) {
	d1 := ClientDescriptor{ClientID: "a", Name: "Alice", CreatedAt: 1}
	d2 := ClientDescriptor{ClientID: "a", Name: "Alice", CreatedAt: 1}
	d3 := ClientDescriptor{ClientID: "b", Name: "Bob", CreatedAt: 2}

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
}

type fakeSession struct {
	open    bool
	roomID  RoomID
	pwdHash string
	sent    [][]byte
	closed  bool
}

func (f *fakeSession) Send(frame []byte)    { f.sent = append(f.sent, frame) }
func (f *fakeSession) IsOpen() bool         { return f.open }
func (f *fakeSession) Close()               { f.closed = true }
func (f *fakeSession) RoomID() RoomID       { return f.roomID }
func (f *fakeSession) PasswordHash() string { return f.pwdHash }

func TestSessionHandleInterface(t *testing.T) {
	var h SessionHandle = &fakeSession{open: true, roomID: "X"}
	assert.True(t, h.IsOpen())
	assert.Equal(t, RoomID("X"), h.RoomID())

	h.Send([]byte("hi"))
	h.Close()

	fs := h.(*fakeSession)
	assert.True(t, fs.closed)
	assert.Len(t, fs.sent, 1)
}
