package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	mock := mocks.NewSyncProducer(t, config)
	return NewProducer(mock), mock
}

func TestPublishSerializesMessageWithPartitionKey(t *testing.T) {
	producer, mock := newMockProducer(t)
	defer producer.Close()

	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "ingestion-requests" {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "grade-five" {
			return fmt.Errorf("unexpected key %s", key)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var decoded IngestRequestMessage
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded.Folder != "/data/notes" {
			return fmt.Errorf("unexpected folder %s", decoded.Folder)
		}
		return nil
	})

	err := producer.Publish(context.Background(), "ingestion-requests", IngestRequestMessage{
		Folder:    "/data/notes",
		Namespace: "grade-five",
	})
	assert.NoError(t, err)
}

func TestPublishWithoutKeyWhenNamespaceEmpty(t *testing.T) {
	producer, mock := newMockProducer(t)
	defer producer.Close()

	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Key != nil {
			return fmt.Errorf("expected no partition key")
		}
		return nil
	})

	err := producer.Publish(context.Background(), "ingestion-requests", IngestRequestMessage{Folder: "/data/notes"})
	assert.NoError(t, err)
}

func TestPublishPropagatesBrokerError(t *testing.T) {
	producer, mock := newMockProducer(t)
	defer producer.Close()

	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.Publish(context.Background(), "ingestion-events", IngestRequestMessage{Folder: "/data/notes"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion-events")
}

func TestPublishOnNilProducer(t *testing.T) {
	var producer *Producer
	err := producer.Publish(context.Background(), "ingestion-events", "payload")
	assert.Error(t, err)
	assert.NoError(t, producer.Close())
}

func TestPublishAfterClose(t *testing.T) {
	producer, _ := newMockProducer(t)
	require.NoError(t, producer.Close())

	err := producer.Publish(context.Background(), "ingestion-events", "payload")
	assert.Error(t, err)
	assert.NoError(t, producer.Close())
}

func TestPublishHonorsCanceledContext(t *testing.T) {
	producer, _ := newMockProducer(t)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.Publish(ctx, "ingestion-events", "payload")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseIngestRequest(t *testing.T) {
	msg, err := ParseIngestRequest([]byte(`{"folder":"/data/notes","namespace":"grade-five","request_id":"req-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "/data/notes", msg.Folder)
	assert.Equal(t, "grade-five", msg.Namespace)
	assert.Equal(t, "req-1", msg.RequestID)
}

func TestParseIngestRequestDefaultsNamespace(t *testing.T) {
	msg, err := ParseIngestRequest([]byte(`{"folder":"/data/notes"}`))
	require.NoError(t, err)
	assert.Empty(t, msg.Namespace)
}

func TestParseIngestRequestRejectsMissingFolder(t *testing.T) {
	_, err := ParseIngestRequest([]byte(`{"namespace":"grade-five"}`))
	assert.Error(t, err)

	_, err = ParseIngestRequest([]byte(`{"folder":"   "}`))
	assert.Error(t, err)
}

func TestParseIngestRequestRejectsBadJSON(t *testing.T) {
	_, err := ParseIngestRequest([]byte(`{folder:`))
	assert.Error(t, err)
}
