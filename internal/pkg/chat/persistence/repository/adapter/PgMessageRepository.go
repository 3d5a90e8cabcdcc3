package adapter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	chat "go-chatrelay/internal/pkg/chat/domain"
)

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) SaveMessage(ctx context.Context, m chat.Message) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New("PgMessageRepository: nil pool")
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (room_id, sender_id, body, date)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`, m.RoomID, m.From, m.Body, m.Date).Scan(&id)
	return id, err
}

func (r *PgMessageRepository) FindByRoom(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageRepository: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	// created_at breaks ties between equal client timestamps so the order
	// readers see is the commit order.
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, room_id, sender_id, body, date
		FROM messages
		WHERE room_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var msg chat.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.From, &msg.Body, &msg.Date); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func (r *PgMessageRepository) HasMessages(ctx context.Context, roomID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgMessageRepository: nil pool")
	}
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM messages WHERE room_id = $1)",
		roomID,
	).Scan(&exists)
	return exists, err
}
