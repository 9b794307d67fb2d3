package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-pipeline/internal/mocks"
	"chat-pipeline/internal/models"
	"chat-pipeline/internal/pipeline"
)

func TestReconcilerCorrectsStaleMark(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	presence := new(mocks.PresenceRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	state := pipeline.NewState()
	reconciler := pipeline.NewReconciler(store, presence, hub, state)

	store.On("OnlineUserIDs", mock.Anything).Return([]int64{7}, nil).Once()
	hub.On("HasConnection", int64(7)).Return(false).Once()
	presence.On("MarkOffline", mock.Anything, int64(7), mock.AnythingOfType("time.Time")).Return(nil).Once()
	store.On("ClearOnline", mock.Anything, int64(7)).Return(nil).Once()
	hub.On("Broadcast", mock.Anything, pipeline.PresenceRoom, "presence_changed", mock.MatchedBy(func(ev models.PresenceEvent) bool {
		return ev.UserID == 7 && ev.Status == "offline" && !ev.LastSeen.IsZero()
	})).Once()

	reconciler.Tick(context.Background())

	store.AssertExpectations(t)
	presence.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestReconcilerLeavesLiveUsersAlone(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	presence := new(mocks.PresenceRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	state := pipeline.NewState()
	reconciler := pipeline.NewReconciler(store, presence, hub, state)

	store.On("OnlineUserIDs", mock.Anything).Return([]int64{1, 2}, nil).Once()
	hub.On("HasConnection", int64(1)).Return(true).Once()
	hub.On("HasConnection", int64(2)).Return(true).Once()

	reconciler.Tick(context.Background())

	store.AssertExpectations(t)
	presence.AssertNotCalled(t, "MarkOffline", mock.Anything, mock.Anything, mock.Anything)
	hub.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcilerKeepsMarkWhenStoreWriteFails(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	presence := new(mocks.PresenceRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	state := pipeline.NewState()
	reconciler := pipeline.NewReconciler(store, presence, hub, state)

	store.On("OnlineUserIDs", mock.Anything).Return([]int64{9}, nil).Once()
	hub.On("HasConnection", int64(9)).Return(false).Once()
	presence.On("MarkOffline", mock.Anything, int64(9), mock.AnythingOfType("time.Time")).Return(assert.AnError).Once()

	reconciler.Tick(context.Background())

	// The mark survives so the next sweep retries.
	store.AssertNotCalled(t, "ClearOnline", mock.Anything, mock.Anything)
	hub.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	presence.AssertExpectations(t)
}

func TestSupervisorStartStop(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	repo := new(mocks.MessageRepositoryMock)
	presence := new(mocks.PresenceRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	state := pipeline.NewState()

	store.On("AcquireLeadership", mock.Anything, "sup-1", mock.Anything).Return(false, nil).Maybe()
	store.On("OnlineUserIDs", mock.Anything).Return([]int64{}, nil).Maybe()

	writer := pipeline.NewBatchWriter(store, repo, state, "sup-1", time.Second, 10)
	reconciler := pipeline.NewReconciler(store, presence, hub, state)
	supervisor := pipeline.NewSupervisor(state, writer, reconciler, nil, 10*time.Millisecond, 10*time.Millisecond)

	supervisor.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	supervisor.Stop()

	require.False(t, state.IsLeader())
}
