package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            channel_id TEXT,
            dm_room_id TEXT,
            sender_id BIGINT,
            body TEXT NOT NULL DEFAULT '',
            type TEXT NOT NULL DEFAULT 'text',
            attachments TEXT[] NOT NULL DEFAULT '{}',
            mentions BIGINT[] NOT NULL DEFAULT '{}',
            parent_id TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            edited_at TIMESTAMPTZ,
            deleted BOOLEAN NOT NULL DEFAULT FALSE,
            pinned BOOLEAN NOT NULL DEFAULT FALSE,
            CHECK ((channel_id IS NULL) <> (dm_room_id IS NULL))
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages (channel_id, id DESC) WHERE channel_id IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_messages_dm_room ON messages (dm_room_id, id DESC) WHERE dm_room_id IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS user_status (
            user_id BIGINT PRIMARY KEY,
            status TEXT NOT NULL DEFAULT 'offline',
            last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
