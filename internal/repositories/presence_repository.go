package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// PresenceRepository persists user online/offline status.
type PresenceRepository interface {
	MarkOnline(ctx context.Context, userID int64) error
	MarkOffline(ctx context.Context, userID int64, lastSeen time.Time) error
}

// PresenceRepo is a sqlx-backed repository.
type PresenceRepo struct {
	db *sqlx.DB
}

// NewPresenceRepo constructs PresenceRepo.
func NewPresenceRepo(db *sqlx.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// MarkOnline upserts the user's status to online.
func (r *PresenceRepo) MarkOnline(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_status (user_id, status, last_seen_at)
        VALUES ($1, 'online', NOW())
        ON CONFLICT (user_id) DO UPDATE SET status='online', last_seen_at=NOW()`, userID)
	return err
}

// MarkOffline upserts the user's status to offline with a last-seen stamp.
func (r *PresenceRepo) MarkOffline(ctx context.Context, userID int64, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_status (user_id, status, last_seen_at)
        VALUES ($1, 'offline', $2)
        ON CONFLICT (user_id) DO UPDATE SET status='offline', last_seen_at=$2`, userID, lastSeen)
	return err
}
