package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-pipeline/internal/auth"
	"chat-pipeline/internal/cache"
	"chat-pipeline/internal/models"
	"chat-pipeline/internal/pipeline"
	"chat-pipeline/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMany(ctx context.Context, msgs []models.ChatMessage, skipDuplicates bool) (int64, error) {
	args := m.Called(ctx, msgs, skipDuplicates)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) FindByID(ctx context.Context, id string) (models.ChatMessage, error) {
	args := m.Called(ctx, id)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomKey string, limit int, beforeID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomKey, limit, beforeID)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type PresenceRepositoryMock struct {
	mock.Mock
}

func (m *PresenceRepositoryMock) MarkOnline(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *PresenceRepositoryMock) MarkOffline(ctx context.Context, userID int64, lastSeen time.Time) error {
	args := m.Called(ctx, userID, lastSeen)
	return args.Error(0)
}

type CacheStoreMock struct {
	mock.Mock
}

func (m *CacheStoreMock) PushRoomMessage(ctx context.Context, msg models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *CacheStoreMock) RecentMessages(ctx context.Context, roomKey string, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomKey, limit)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *CacheStoreMock) EnqueuePending(ctx context.Context, msg models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *CacheStoreMock) PeekPending(ctx context.Context, max int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, max)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *CacheStoreMock) RemovePending(ctx context.Context, n int) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *CacheStoreMock) PendingDepth(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CacheStoreMock) AcquireLeadership(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *CacheStoreMock) RenewLeadership(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *CacheStoreMock) ReleaseLeadership(ctx context.Context, owner string) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

func (m *CacheStoreMock) MarkOnline(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *CacheStoreMock) ClearOnline(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *CacheStoreMock) OnlineUserIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *CacheStoreMock) PublishBroadcast(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *CacheStoreMock) SubscribeBroadcasts(ctx context.Context, fn func(payload []byte)) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *CacheStoreMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *CacheStoreMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type AuthorizerMock struct {
	mock.Mock
}

func (m *AuthorizerMock) IsMember(ctx context.Context, userID int64, roomKey string) (bool, error) {
	args := m.Called(ctx, userID, roomKey)
	return args.Bool(0), args.Error(1)
}

func (m *AuthorizerMock) HasAccess(ctx context.Context, userID int64, channelID string) (bool, error) {
	args := m.Called(ctx, userID, channelID)
	return args.Bool(0), args.Error(1)
}

type TokenValidatorMock struct {
	mock.Mock
}

func (m *TokenValidatorMock) ValidateToken(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) Broadcast(ctx context.Context, roomKey, event string, payload interface{}) {
	m.Called(ctx, roomKey, event, payload)
}

func (m *BroadcasterMock) HasConnection(userID int64) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.PresenceRepository = (*PresenceRepositoryMock)(nil)
var _ cache.Store = (*CacheStoreMock)(nil)
var _ auth.Authorizer = (*AuthorizerMock)(nil)
var _ auth.TokenValidator = (*TokenValidatorMock)(nil)
var _ pipeline.Broadcaster = (*BroadcasterMock)(nil)
