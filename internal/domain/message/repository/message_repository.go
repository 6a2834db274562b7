package repository

import (
	"context"
	"fmt"

	"seest/internal/domain/message/model"

	"github.com/jmoiron/sqlx"
)

type MessageRepository interface {
	Insert(ctx context.Context, m *model.Message) error
	ListForUser(ctx context.Context, userID string) ([]model.Message, error)
	Between(ctx context.Context, userID, peerID string) ([]model.Message, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Insert(ctx context.Context, m *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, text, image_url, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SenderID, m.ReceiverID, m.Text, m.ImageURL, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting message: %w", err)
	}
	return nil
}

func (r *messageRepository) ListForUser(ctx context.Context, userID string) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, sender_id, receiver_id, text, image_url, created_at FROM messages
		WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) Between(ctx context.Context, userID, peerID string) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, sender_id, receiver_id, text, image_url, created_at FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC`, userID, peerID)
	if err != nil {
		return nil, fmt.Errorf("error listing conversation: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, userID)
	if err != nil {
		return false, fmt.Errorf("error checking user: %w", err)
	}
	return exists, nil
}
