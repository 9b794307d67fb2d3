package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"chat-pipeline/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines durable-store interactions for chat messages.
type MessageRepository interface {
	CreateMany(ctx context.Context, msgs []models.ChatMessage, skipDuplicates bool) (int64, error)
	FindByID(ctx context.Context, id string) (models.ChatMessage, error)
	ListRoomMessages(ctx context.Context, roomKey string, limit int, beforeID string) ([]models.ChatMessage, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const insertMessage = `INSERT INTO messages
    (id, channel_id, dm_room_id, sender_id, body, type, attachments, mentions, parent_id, created_at, edited_at, deleted, pinned)
    VALUES (:id, :channel_id, :dm_room_id, :sender_id, :body, :type, :attachments, :mentions, :parent_id, :created_at, :edited_at, :deleted, :pinned)`

// CreateMany bulk-inserts messages in a single transaction. With
// skipDuplicates set, rows whose id already exists are silently skipped,
// which makes replays of the same batch harmless. The whole batch commits
// or none of it does.
func (r *MessageRepo) CreateMany(ctx context.Context, msgs []models.ChatMessage, skipDuplicates bool) (int64, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	query := insertMessage
	if skipDuplicates {
		query += ` ON CONFLICT (id) DO NOTHING`
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	var inserted int64
	for _, msg := range msgs {
		res, err := tx.NamedExecContext(ctx, query, msg)
		if err != nil {
			return 0, fmt.Errorf("insert message %s: %w", msg.ID, err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += count
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk insert: %w", err)
	}
	return inserted, nil
}

// FindByID retrieves a single message.
func (r *MessageRepo) FindByID(ctx context.Context, id string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.GetContext(ctx, &msg, `SELECT * FROM messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	return msg, err
}

// ListRoomMessages returns the most recent messages for a room, newest
// first. ULID ids sort by creation time, so id ordering is time ordering.
// A non-empty beforeID pages further back in history.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomKey string, limit int, beforeID string) ([]models.ChatMessage, error) {
	channelID, dmRoomID, err := models.ParseRoomKey(roomKey)
	if err != nil {
		return nil, err
	}

	column := "channel_id"
	value := channelID
	if dmRoomID != nil {
		column = "dm_room_id"
		value = dmRoomID
	}

	query := `SELECT * FROM messages WHERE ` + column + `=$1 AND deleted = FALSE`
	args := []interface{}{*value}
	if beforeID != "" {
		query += ` AND id < $2`
		args = append(args, beforeID)
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT %d`, limit)

	var msgs []models.ChatMessage
	err = r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// Exists reports whether a message id already has a durable row.
func (r *MessageRepo) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.db.GetContext(ctx, &found, `SELECT EXISTS (SELECT 1 FROM messages WHERE id=$1)`, id)
	return found, err
}
