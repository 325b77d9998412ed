package room

import (
	"sync"

	"github.com/nimbusrelay/signalrelay/internal/v1/types"
)

type fakeSession struct {
	mu     sync.Mutex
	roomID types.RoomID
	pwHash string
	open   bool
	sent   [][]byte
}

func newFakeSession(roomID types.RoomID) *fakeSession {
	return &fakeSession{roomID: roomID, open: true}
}

func (s *fakeSession) Send(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, frame)
}

func (s *fakeSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
}

func (s *fakeSession) RoomID() types.RoomID   { return s.roomID }
func (s *fakeSession) PasswordHash() string   { return s.pwHash }

// messages returns the frames sent since the previous call and clears
// them, so `_ = s.messages()` drains the session.
func (s *fakeSession) messages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}
