package realtime

import (
	"sync"
)

// Sink receives outbound payloads. Connection satisfies it; tests substitute
// in-memory sinks.
type Sink interface {
	ID() string
	UserID() string
	Send(payload []byte) error
	Close(code int, reason string)
}

// Registry is this instance's local subscription table: live sessions and
// their room memberships. It is exclusively owned by one gateway process and
// never shared across instances; cross-instance visibility goes through the
// fan-out bus instead.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]Sink                // sessionID -> sink
	userSessions map[string]string              // userID -> sessionID
	rooms        map[string]map[string]Sink     // roomID -> sessionID -> sink
	sessionRooms map[string]map[string]struct{} // sessionID -> set of roomIDs
}

// NewRegistry constructs an initialized Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]Sink),
		userSessions: make(map[string]string),
		rooms:        make(map[string]map[string]Sink),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Attach registers a sink for the given user. If a previous session exists it
// is removed and closed after the swap, enforcing one active socket per user.
func (r *Registry) Attach(s Sink) {
	var previous Sink

	r.mu.Lock()
	if existingID, ok := r.userSessions[s.UserID()]; ok {
		if existing := r.sessions[existingID]; existing != nil {
			previous = existing
			r.detachLocked(existingID)
		}
	}

	r.sessions[s.ID()] = s
	r.userSessions[s.UserID()] = s.ID()
	r.sessionRooms[s.ID()] = make(map[string]struct{})
	r.mu.Unlock()

	if previous != nil {
		previous.Close(4001, "session replaced")
	}
}

// Detach removes a sink and all of its room subscriptions.
func (r *Registry) Detach(s Sink) {
	r.mu.Lock()
	r.detachLocked(s.ID())
	r.mu.Unlock()
}

// Join subscribes the sink to a room. Unattached sinks are ignored.
func (r *Registry) Join(roomID string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; !ok {
		return
	}

	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]Sink)
		r.rooms[roomID] = room
	}
	room[s.ID()] = s

	memberships := r.sessionRooms[s.ID()]
	if memberships == nil {
		memberships = make(map[string]struct{})
		r.sessionRooms[s.ID()] = memberships
	}
	memberships[roomID] = struct{}{}
}

// Leave removes the sink's subscription to a room.
func (r *Registry) Leave(roomID string, s Sink) {
	r.mu.Lock()
	r.leaveLocked(roomID, s.ID())
	r.mu.Unlock()
}

// EmitToRoom writes payload to every sink subscribed to the room and returns
// the delivered count. This is the local fan-out target for both
// locally-originated and bus-relayed events.
func (r *Registry) EmitToRoom(roomID string, payload []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	delivered := 0
	for _, s := range r.rooms[roomID] {
		if err := s.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// EmitAll writes payload to every attached sink, skipping excludeUserID when
// non-empty. Presence changes and room reveals use this path.
func (r *Registry) EmitAll(payload []byte, excludeUserID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	delivered := 0
	for _, s := range r.sessions {
		if excludeUserID != "" && s.UserID() == excludeUserID {
			continue
		}
		if err := s.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Connected reports whether the user currently holds a live session on this
// instance. The gateway checks it during teardown so a replaced session's
// disconnect does not mark a still-connected user offline.
func (r *Registry) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.userSessions[userID]
	return ok
}

// RoomSize returns how many local sessions are subscribed to the room.
func (r *Registry) RoomSize(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// Close terminates all tracked sinks and clears registry state.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]Sink, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]Sink)
	r.userSessions = make(map[string]string)
	r.rooms = make(map[string]map[string]Sink)
	r.sessionRooms = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close(1001, "registry shutdown")
	}
}

func (r *Registry) detachLocked(sessionID string) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)

	if current, ok := r.userSessions[s.UserID()]; ok && current == sessionID {
		delete(r.userSessions, s.UserID())
	}

	for roomID := range r.sessionRooms[sessionID] {
		r.leaveLocked(roomID, sessionID)
	}
	delete(r.sessionRooms, sessionID)
}

func (r *Registry) leaveLocked(roomID string, sessionID string) {
	room := r.rooms[roomID]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
	if memberships, ok := r.sessionRooms[sessionID]; ok {
		delete(memberships, roomID)
		if len(memberships) == 0 {
			delete(r.sessionRooms, sessionID)
		}
	}
}
