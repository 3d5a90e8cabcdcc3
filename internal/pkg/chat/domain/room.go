package chat

import (
	"fmt"
	"strings"
)

// privateRoomSeparator joins the two participant IDs of a private room. A
// room ID containing exactly one separator is private by construction; any
// other shape is a named/group room ID.
const privateRoomSeparator = ":"

// GeneralRoomID is the default room every user belongs to.
const GeneralRoomID = "0"

// ValidationError marks input that is rejected before it can reach
// persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chat: invalid %s: %s", e.Field, e.Reason)
}

// ResolvePrivateRoom computes the canonical ID of the two-party room between
// userA and userB. It is pure and commutative: swapping arguments yields the
// identical ID. It does not check that the users exist.
func ResolvePrivateRoom(userA, userB string) (string, error) {
	if err := validateUserID("userA", userA); err != nil {
		return "", err
	}
	if err := validateUserID("userB", userB); err != nil {
		return "", err
	}
	if userA == userB {
		return "", &ValidationError{Field: "userB", Reason: "participants must differ"}
	}
	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + privateRoomSeparator + hi, nil
}

// IsPrivateRoomID reports whether id has the private-room shape: two
// non-empty identifiers joined by the separator. Group room IDs are opaque
// and never contain the separator.
func IsPrivateRoomID(id string) bool {
	parts := strings.Split(id, privateRoomSeparator)
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

// SplitPrivateRoom returns the two participant IDs of a private room.
func SplitPrivateRoom(id string) (string, string, error) {
	parts := strings.Split(id, privateRoomSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &ValidationError{Field: "roomId", Reason: "not a private room id"}
	}
	return parts[0], parts[1], nil
}

// ValidateRoomID accepts both private and group room IDs and rejects
// empty/malformed ones.
func ValidateRoomID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "roomId", Reason: "must not be empty"}
	}
	if strings.Contains(id, privateRoomSeparator) && !IsPrivateRoomID(id) {
		return &ValidationError{Field: "roomId", Reason: "malformed private room id"}
	}
	return nil
}

func validateUserID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if strings.Contains(id, privateRoomSeparator) {
		return &ValidationError{Field: field, Reason: "must not contain " + privateRoomSeparator}
	}
	return nil
}
