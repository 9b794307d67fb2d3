package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
)

// MessageType tags the payload carried by a chat message.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

var (
	ErrInvalidRoomRef   = errors.New("message must reference exactly one of channel or dm room")
	ErrUnknownType      = errors.New("unknown message type")
	ErrEmptyBody        = errors.New("message body is empty")
	ErrBodyTooLarge     = errors.New("message body exceeds limit")
	ErrMissingMessageID = errors.New("message id is empty")
)

// ChatMessage is a message flowing through the delivery pipeline.
// IDs are ULIDs minted at submit time, so they sort by creation time.
type ChatMessage struct {
	ID          string         `db:"id" json:"id"`
	ChannelID   *string        `db:"channel_id" json:"channel_id,omitempty"`
	DMRoomID    *string        `db:"dm_room_id" json:"dm_room_id,omitempty"`
	SenderID    *int64         `db:"sender_id" json:"sender_id,omitempty"`
	Body        string         `db:"body" json:"body"`
	Type        MessageType    `db:"type" json:"type"`
	Attachments pq.StringArray `db:"attachments" json:"attachments,omitempty"`
	Mentions    pq.Int64Array  `db:"mentions" json:"mentions,omitempty"`
	ParentID    *string        `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	EditedAt    *time.Time     `db:"edited_at" json:"edited_at,omitempty"`
	Deleted     bool           `db:"deleted" json:"deleted"`
	Pinned      bool           `db:"pinned" json:"pinned"`
}

// NewMessageID mints a time-ordered message id.
func NewMessageID() string {
	return ulid.Make().String()
}

// RoomKey derives the room the message belongs to. The key doubles as
// broker routing key, cache key suffix and broadcast room id.
func (m ChatMessage) RoomKey() string {
	if m.ChannelID != nil {
		return "channel:" + *m.ChannelID
	}
	if m.DMRoomID != nil {
		return "dm:" + *m.DMRoomID
	}
	return ""
}

// Validate checks the message against the pipeline schema. Oversized or
// malformed messages never enter the pipeline, so the same check runs on
// both produce and consume sides.
func (m ChatMessage) Validate(maxBodyBytes int) error {
	if m.ID == "" {
		return ErrMissingMessageID
	}
	if (m.ChannelID == nil) == (m.DMRoomID == nil) {
		return ErrInvalidRoomRef
	}
	switch m.Type {
	case MessageTypeText:
		if m.Body == "" {
			return ErrEmptyBody
		}
	case MessageTypeFile:
		if len(m.Attachments) == 0 {
			return fmt.Errorf("file message without attachments")
		}
	case MessageTypeSystem:
	default:
		return ErrUnknownType
	}
	if maxBodyBytes > 0 && len(m.Body) > maxBodyBytes {
		return ErrBodyTooLarge
	}
	return nil
}

// WSEvent is broadcast to room subscribers over websockets.
type WSEvent struct {
	Type    string      `json:"type"`
	Room    string      `json:"room"`
	Payload interface{} `json:"payload,omitempty"`
}

// PresenceEvent announces a user status transition.
type PresenceEvent struct {
	UserID   int64     `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}
