package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockProducer(t *testing.T) *mocks.SyncProducer {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, cfg)
}

func header(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaNotifierPublishesAssignment(t *testing.T) {
	producer := newMockProducer(t)
	n := newKafkaNotifier(producer, "assetdesk.notifications", "inst-1", zap.NewNop())
	defer n.Close()

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "assetdesk.notifications" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "a-1" {
			return errors.New("wrong key " + string(key))
		}
		if header(msg, "event-type") != EventAssignmentCreated {
			return errors.New("missing event-type header")
		}

		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var event Event
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.Source != "inst-1" || event.Notice == nil || event.Notice.Employee.Email != "jane@example.com" {
			return errors.New("unexpected event payload")
		}
		if header(msg, "event-id") != event.EventID {
			return errors.New("event-id header does not match payload")
		}
		return nil
	})

	require.NoError(t, n.NotifyAssignment(context.Background(), testNotice()))
}

func TestKafkaNotifierSendFailure(t *testing.T) {
	producer := newMockProducer(t)
	n := newKafkaNotifier(producer, "topic", "inst-1", zap.NewNop())
	defer n.Close()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := n.NotifyAssignment(context.Background(), testNotice())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestKafkaNotifierSendTest(t *testing.T) {
	producer := newMockProducer(t)
	n := newKafkaNotifier(producer, "topic", "inst-1", zap.NewNop())
	defer n.Close()

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Key != nil {
			return errors.New("test event should not be keyed")
		}
		if header(msg, "event-type") != EventTest {
			return errors.New("wrong event type")
		}
		return nil
	})

	require.NoError(t, n.SendTest(context.Background(), "ops@example.com"))
	assert.NoError(t, n.Verify(context.Background()))
}
