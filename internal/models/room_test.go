package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoomKey(t *testing.T) {
	channelID, dmRoomID, err := ParseRoomKey("channel:42")
	require.NoError(t, err)
	require.NotNil(t, channelID)
	require.Equal(t, "42", *channelID)
	require.Nil(t, dmRoomID)

	channelID, dmRoomID, err = ParseRoomKey("dm:7")
	require.NoError(t, err)
	require.Nil(t, channelID)
	require.NotNil(t, dmRoomID)
	require.Equal(t, "7", *dmRoomID)

	for _, key := range []string{"", "lobby", "channel:", "guild:1"} {
		_, _, err := ParseRoomKey(key)
		require.ErrorIs(t, err, ErrBadRoomKey, "key %q", key)
	}
}

func TestRoomKeyRoundTrip(t *testing.T) {
	channel := "42"
	msg := ChatMessage{ChannelID: &channel}

	parsedChannel, parsedDM, err := ParseRoomKey(msg.RoomKey())
	require.NoError(t, err)
	require.Equal(t, &channel, parsedChannel)
	require.Nil(t, parsedDM)
}
