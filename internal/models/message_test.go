package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRoomKey(t *testing.T) {
	msg := ChatMessage{ChannelID: strPtr("42")}
	require.Equal(t, "channel:42", msg.RoomKey())

	msg = ChatMessage{DMRoomID: strPtr("7")}
	require.Equal(t, "dm:7", msg.RoomKey())

	require.Equal(t, "", ChatMessage{}.RoomKey())
}

func TestValidateRoomXOR(t *testing.T) {
	base := ChatMessage{ID: NewMessageID(), Body: "hi", Type: MessageTypeText}

	both := base
	both.ChannelID = strPtr("1")
	both.DMRoomID = strPtr("2")
	require.ErrorIs(t, both.Validate(0), ErrInvalidRoomRef)

	neither := base
	require.ErrorIs(t, neither.Validate(0), ErrInvalidRoomRef)

	one := base
	one.ChannelID = strPtr("1")
	require.NoError(t, one.Validate(0))
}

func TestValidateTypes(t *testing.T) {
	msg := ChatMessage{ID: NewMessageID(), ChannelID: strPtr("1"), Type: MessageType("gif")}
	require.ErrorIs(t, msg.Validate(0), ErrUnknownType)

	msg.Type = MessageTypeText
	require.ErrorIs(t, msg.Validate(0), ErrEmptyBody)

	msg.Type = MessageTypeSystem
	require.NoError(t, msg.Validate(0))

	msg.Type = MessageTypeFile
	require.Error(t, msg.Validate(0))
	msg.Attachments = []string{"https://cdn.example/a.png"}
	require.NoError(t, msg.Validate(0))
}

func TestValidateBodyLimit(t *testing.T) {
	msg := ChatMessage{ID: NewMessageID(), ChannelID: strPtr("1"), Type: MessageTypeText, Body: "0123456789"}
	require.ErrorIs(t, msg.Validate(5), ErrBodyTooLarge)
	require.NoError(t, msg.Validate(10))
}

func TestMessageIDsAreTimeOrdered(t *testing.T) {
	first := NewMessageID()
	time.Sleep(2 * time.Millisecond)
	second := NewMessageID()
	require.Less(t, first, second)
}

func TestEnvelopeValidate(t *testing.T) {
	msg := ChatMessage{ID: NewMessageID(), ChannelID: strPtr("1"), Type: MessageTypeText, Body: "hi"}

	env := NewMessageEnvelope(msg)
	require.NoError(t, env.Validate(0))

	env.SchemaVersion = 99
	require.Error(t, env.Validate(0))

	env = NewMessageEnvelope(msg)
	env.Event = "message.deleted"
	require.ErrorIs(t, env.Validate(0), ErrUnknownEvent)
}
