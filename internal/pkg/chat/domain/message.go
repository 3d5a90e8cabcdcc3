package chat

import (
	"strings"
	"time"
)

// Message is an immutable log entry in a room. Date is the client-supplied
// unix-millisecond timestamp used as the history sort key; ID is assigned by
// the durable store and attached only after persistence succeeds.
type Message struct {
	ID     string `json:"id,omitempty"`
	From   string `json:"from"`
	RoomID string `json:"roomId"`
	Body   string `json:"message"`
	Date   int64  `json:"date"`
}

// NewMessage validates and normalizes an inbound message. Sanitization always
// succeeds; a message is rejected only for missing identity or an empty body.
func NewMessage(from, roomID, body string, date int64) (Message, error) {
	if strings.TrimSpace(from) == "" {
		return Message{}, &ValidationError{Field: "from", Reason: "must not be empty"}
	}
	if err := ValidateRoomID(roomID); err != nil {
		return Message{}, err
	}
	body = Sanitize(body)
	if strings.TrimSpace(body) == "" {
		return Message{}, &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if date <= 0 {
		date = time.Now().UnixMilli()
	}
	return Message{From: from, RoomID: roomID, Body: body, Date: date}, nil
}

// Sanitize escapes markup-significant characters so message bodies are inert
// when rendered.
func Sanitize(text string) string {
	if !strings.ContainsAny(text, "<>") {
		return text
	}
	text = strings.ReplaceAll(text, "<", "&lt")
	return strings.ReplaceAll(text, ">", "&gt")
}
