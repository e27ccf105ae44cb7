package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/deposit-watcher/internal/core/domain"
)

func newMockProducer(t *testing.T) *mocks.SyncProducer {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, config)
}

func TestPublisher_Deliver(t *testing.T) {
	producer := newMockProducer(t)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, DefaultTopic, msg.Topic)

		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "0xaa", string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)

		var event domain.DepositEvent
		require.NoError(t, json.Unmarshal(value, &event))
		assert.Equal(t, domain.EventTypeDepositCreated, event.EventType)
		assert.Equal(t, uint64(1000), event.Deposit.BlockNumber)
		assert.Equal(t, "1050000000000000", event.Deposit.Fee)
		return nil
	})

	p := NewPublisherWithProducer(producer, "")
	event := domain.NewDepositEvent(domain.EventTypeDepositCreated, &domain.Deposit{
		Hash:        "0xaa",
		BlockNumber: 1000,
		Fee:         "1050000000000000",
		Status:      domain.DepositStatusValid,
	})

	require.NoError(t, p.Deliver(context.Background(), event))
	require.NoError(t, p.Close())
}

func TestPublisher_DeliverFailure(t *testing.T) {
	producer := newMockProducer(t)
	producer.ExpectSendMessageAndFail(errors.New("leader not available"))

	p := NewPublisherWithProducer(producer, "deposits-test")
	err := p.Deliver(context.Background(), domain.NewDepositEvent(
		domain.EventTypeDepositInvalidated,
		&domain.Deposit{Hash: "0xbb", Status: domain.DepositStatusInvalid},
	))

	assert.ErrorContains(t, err, "0xbb")
	require.NoError(t, p.Close())
}

func TestPublisher_Name(t *testing.T) {
	p := NewPublisherWithProducer(newMockProducer(t), "")
	assert.Equal(t, "kafka", p.Name())
	require.NoError(t, p.Close())
}
