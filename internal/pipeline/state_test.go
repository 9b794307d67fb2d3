package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-pipeline/internal/pipeline"
)

func TestStateSnapshot(t *testing.T) {
	state := pipeline.NewState()

	snap := state.Snapshot()
	require.False(t, snap.Leader)
	require.False(t, snap.BrokerUp)

	state.SetLeader(true)
	state.SetBrokerUp(true)
	state.SetCacheUp(true)
	state.SetStoreUp(true)

	snap = state.Snapshot()
	require.True(t, snap.Leader)
	require.True(t, snap.BrokerUp)
	require.True(t, snap.CacheUp)
	require.True(t, snap.StoreUp)
	require.True(t, state.IsLeader())
}
