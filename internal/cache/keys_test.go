package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomRecentKey(t *testing.T) {
	require.Equal(t, "room:channel:42:recent", roomRecentKey("channel:42"))
	require.Equal(t, "room:dm:7:recent", roomRecentKey("dm:7"))
}

func TestPendingKeyIsPerDeployment(t *testing.T) {
	require.Equal(t, "pipeline:pending:eu-1", pendingKey("eu-1"))
	require.NotEqual(t, pendingKey("eu-1"), pendingKey("us-1"))
}
