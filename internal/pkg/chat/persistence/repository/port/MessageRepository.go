package repository

import (
	"context"

	chat "go-chatrelay/internal/pkg/chat/domain"
)

// MessageRepository is the durable store for messages. It is the single
// source of truth: the hot cache is repopulated from it and never substitutes
// for it.
type MessageRepository interface {
	// SaveMessage persists m and returns the store-assigned identifier.
	// This is the durability commit point for a message.
	SaveMessage(ctx context.Context, m chat.Message) (string, error)

	// FindByRoom returns up to limit messages for the room, newest first.
	FindByRoom(ctx context.Context, roomID string, limit int) ([]chat.Message, error)

	// HasMessages reports whether any message has ever been persisted for
	// the room.
	HasMessages(ctx context.Context, roomID string) (bool, error)
}

// User is a directory row exposed to the HTTP surface.
type User struct {
	ID       string
	Username string
}

// UserRepository reads the user directory maintained by the account CRUD
// service.
type UserRepository interface {
	ListUsers(ctx context.Context) ([]User, error)
}
