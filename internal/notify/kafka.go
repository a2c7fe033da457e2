package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/config"
	"github.com/erazemk/assetdesk/internal/model"
)

// Event types published on the notification topic.
const (
	EventAssignmentCreated = "assignment.created"
	EventTest              = "notification.test"
)

// Event is the JSON envelope published to Kafka. A downstream mailer
// consumes it and delivers the actual email.
type Event struct {
	EventID    string                  `json:"eventId"`
	Type       string                  `json:"type"`
	OccurredAt time.Time               `json:"occurredAt"`
	Source     string                  `json:"source"`
	Notice     *model.AssignmentNotice `json:"notice,omitempty"`
	Recipient  string                  `json:"recipient,omitempty"`
}

// KafkaNotifier publishes notifications as events for another service to
// deliver.
type KafkaNotifier struct {
	client   sarama.Client
	producer sarama.SyncProducer
	topic    string
	source   string
	log      *zap.Logger
}

// NewKafkaNotifier connects to the brokers. source identifies this
// installation in published events.
func NewKafkaNotifier(cfg config.KafkaConfig, source string, log *zap.Logger) (*KafkaNotifier, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = cfg.Retries
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("connecting to kafka: %w", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	n := newKafkaNotifier(producer, cfg.Topic, source, log)
	n.client = client
	return n, nil
}

func newKafkaNotifier(producer sarama.SyncProducer, topic, source string, log *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		source:   source,
		log:      log.Named("kafka"),
	}
}

func (n *KafkaNotifier) Name() string { return "kafka" }

// Verify refreshes metadata for the topic, which fails when no broker is
// reachable or the topic does not exist.
func (n *KafkaNotifier) Verify(ctx context.Context) error {
	if n.client == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- n.client.RefreshMetadata(n.topic) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("refreshing metadata for %s: %w", n.topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *KafkaNotifier) NotifyAssignment(ctx context.Context, notice model.AssignmentNotice) error {
	return n.publish(ctx, notice.AssignmentID, Event{
		Type:   EventAssignmentCreated,
		Notice: &notice,
	})
}

func (n *KafkaNotifier) SendTest(ctx context.Context, to string) error {
	return n.publish(ctx, "", Event{Type: EventTest, Recipient: to})
}

// Close releases the producer and the client.
func (n *KafkaNotifier) Close() error {
	err := n.producer.Close()
	if n.client != nil && !n.client.Closed() {
		err = errors.Join(err, n.client.Close())
	}
	return err
}

func (n *KafkaNotifier) publish(ctx context.Context, key string, event Event) error {
	event.EventID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	event.Source = n.source

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
			{Key: []byte("event-id"), Value: []byte(event.EventID)},
			{Key: []byte("timestamp"), Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", event.Type, err)
	}
	n.log.Debug("event published",
		zap.String("topic", n.topic),
		zap.String("event_type", event.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}
