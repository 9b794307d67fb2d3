package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-pipeline/internal/mocks"
	"chat-pipeline/internal/models"
	"chat-pipeline/internal/pipeline"
)

type fakeAcknowledger struct {
	acked  bool
	nacked bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return nil
}

func testConsumer(store *mocks.CacheStoreMock, repo *mocks.MessageRepositoryMock) *Consumer {
	return &Consumer{
		store:    store,
		messages: repo,
		state:    pipeline.NewState(),
	}
}

func delivery(t *testing.T, payload interface{}) (amqp.Delivery, *fakeAcknowledger) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	ack := &fakeAcknowledger{}
	return amqp.Delivery{Acknowledger: ack, Body: body}, ack
}

func testMessage(id string) models.ChatMessage {
	channel := "9"
	return models.ChatMessage{
		ID:        id,
		ChannelID: &channel,
		Body:      "hello",
		Type:      models.MessageTypeText,
		CreatedAt: time.Now().UTC(),
	}
}

func TestHandleDeliveryFansOut(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	repo := new(mocks.MessageRepositoryMock)
	consumer := testConsumer(store, repo)

	msg := testMessage("01A")
	d, ack := delivery(t, models.NewMessageEnvelope(msg))

	store.On("PushRoomMessage", mock.Anything, mock.AnythingOfType("models.ChatMessage")).Return(nil).Once()
	store.On("EnqueuePending", mock.Anything, mock.AnythingOfType("models.ChatMessage")).Return(nil).Once()

	consumer.handleDelivery(context.Background(), d)

	require.True(t, ack.acked)
	store.AssertExpectations(t)
	repo.AssertNotCalled(t, "CreateMany", mock.Anything, mock.Anything, mock.Anything)
	require.True(t, consumer.state.Snapshot().CacheUp)
}

func TestHandleDeliveryCacheDownFallsBackToDirectWrite(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	repo := new(mocks.MessageRepositoryMock)
	consumer := testConsumer(store, repo)

	msg := testMessage("01B")
	d, ack := delivery(t, models.NewMessageEnvelope(msg))

	store.On("PushRoomMessage", mock.Anything, mock.AnythingOfType("models.ChatMessage")).Return(assert.AnError).Once()
	repo.On("CreateMany", mock.Anything, mock.AnythingOfType("[]models.ChatMessage"), true).Return(int64(1), nil).Once()

	consumer.handleDelivery(context.Background(), d)

	require.True(t, ack.acked)
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "EnqueuePending", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
	require.False(t, consumer.state.Snapshot().CacheUp)
}

func TestHandleDeliveryEnqueueFailureAlsoFallsBack(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	repo := new(mocks.MessageRepositoryMock)
	consumer := testConsumer(store, repo)

	msg := testMessage("01C")
	d, ack := delivery(t, models.NewMessageEnvelope(msg))

	store.On("PushRoomMessage", mock.Anything, mock.AnythingOfType("models.ChatMessage")).Return(nil).Once()
	store.On("EnqueuePending", mock.Anything, mock.AnythingOfType("models.ChatMessage")).Return(assert.AnError).Once()
	repo.On("CreateMany", mock.Anything, mock.AnythingOfType("[]models.ChatMessage"), true).Return(int64(1), nil).Once()

	consumer.handleDelivery(context.Background(), d)

	require.True(t, ack.acked)
	store.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestHandleDeliveryDropsMalformedPayload(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	repo := new(mocks.MessageRepositoryMock)
	consumer := testConsumer(store, repo)

	ack := &fakeAcknowledger{}
	d := amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")}

	consumer.handleDelivery(context.Background(), d)

	// Poison messages are acked and dropped, never retried forever.
	require.True(t, ack.acked)
	store.AssertNotCalled(t, "PushRoomMessage", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CreateMany", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleDeliveryDropsInvalidEnvelope(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	repo := new(mocks.MessageRepositoryMock)
	consumer := testConsumer(store, repo)

	envelope := models.NewMessageEnvelope(testMessage("01D"))
	envelope.SchemaVersion = 99
	d, ack := delivery(t, envelope)

	consumer.handleDelivery(context.Background(), d)

	require.True(t, ack.acked)
	store.AssertNotCalled(t, "PushRoomMessage", mock.Anything, mock.Anything)
}

func TestHandleDeliveryDirectWriteFailureStillAcks(t *testing.T) {
	store := new(mocks.CacheStoreMock)
	repo := new(mocks.MessageRepositoryMock)
	consumer := testConsumer(store, repo)

	msg := testMessage("01E")
	d, ack := delivery(t, models.NewMessageEnvelope(msg))

	store.On("PushRoomMessage", mock.Anything, mock.AnythingOfType("models.ChatMessage")).Return(assert.AnError).Once()
	repo.On("CreateMany", mock.Anything, mock.AnythingOfType("[]models.ChatMessage"), true).Return(int64(0), assert.AnError).Once()

	consumer.handleDelivery(context.Background(), d)

	require.True(t, ack.acked)
	repo.AssertExpectations(t)
}
