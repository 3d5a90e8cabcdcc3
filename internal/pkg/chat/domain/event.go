package chat

// Event type tags shared by the websocket protocol and the fan-out bus.
const (
	EventMessage          = "message"
	EventShowRoom         = "show.room"
	EventUserConnected    = "user.connected"
	EventUserDisconnected = "user.disconnected"
)

// PresenceEvent announces a user's online/offline transition fleet-wide.
type PresenceEvent struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Online   bool   `json:"online"`
}

// RoomRevealEvent is published once, on the first message into a
// previously-empty private room, so clients can materialize the room in
// their lists.
type RoomRevealEvent struct {
	ID    string   `json:"id"`
	Names []string `json:"names"`
}
