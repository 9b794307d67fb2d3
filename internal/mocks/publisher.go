package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-pipeline/internal/models"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) PublishMessage(ctx context.Context, msg models.ChatMessage) bool {
	args := m.Called(ctx, msg)
	return args.Bool(0)
}

func (m *PublisherMock) PublishEvent(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
