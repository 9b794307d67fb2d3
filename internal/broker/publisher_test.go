package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoopPublisherSignalsFallback(t *testing.T) {
	publisher := NewPublisher("", "chat.messages", 30*time.Second)
	require.Equal(t, "noop", PublisherMode(publisher))

	msg := testMessage("01F")
	require.False(t, publisher.PublishMessage(context.Background(), msg), "noop publish must signal the direct-write fallback")
	require.NoError(t, publisher.PublishEvent(context.Background(), "audit.pipeline", struct{}{}))
	require.NoError(t, publisher.Close())
}
