package chat

// Shared-store key layout. These keys are read and written by every gateway
// instance, so the shape is part of the wire contract, not an adapter detail.

// RoomKey is the sorted set holding a room's hot message history.
func RoomKey(roomID string) string { return "room:" + roomID }

// RoomNameKey holds a named room's display name; absent for private rooms.
func RoomNameKey(roomID string) string { return "room:" + roomID + ":name" }

// UserKey is the hash carrying a user's directory fields (username).
func UserKey(userID string) string { return "user:" + userID }

// UserRoomsKey is the set of room IDs the user belongs to.
func UserRoomsKey(userID string) string { return "user:" + userID + ":rooms" }

// OnlineUsersKey is the fleet-wide set of currently-connected user IDs.
const OnlineUsersKey = "online_users"
