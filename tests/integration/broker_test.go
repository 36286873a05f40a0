package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"

	"chronicle/internal/broker"
	"chronicle/internal/config"
	"chronicle/internal/event"
)

func setupKafka(t *testing.T) []string {
	t.Helper()

	ctx := context.Background()
	container, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("test-cluster"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	return brokers
}

func kafkaConfig(brokers []string, group, input, dlq string) config.BrokerConfig {
	return config.BrokerConfig{
		Kafka: config.KafkaConfig{
			Brokers:    brokers,
			GroupID:    group,
			InputTopic: input,
			DLQTopic:   dlq,
			Retry: config.RetryConfig{
				MaxAttempts:     2,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     time.Second,
				Multiplier:      2.0,
			},
		},
	}
}

func TestKafkaBroker_PublishConsumeRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}

	brokers := setupKafka(t)
	topic := fmt.Sprintf("audit.events.%d", time.Now().UnixNano())
	cfg := kafkaConfig(brokers, "roundtrip-group", topic, "")

	producer := broker.NewProducer(cfg, createTestLogger())
	defer producer.Close()

	consumer := broker.NewConsumer(cfg, createTestLogger())
	consumer.SetServiceName("broker-test")
	defer consumer.Close()

	received := make(chan event.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumer.Consume(ctx, topic, func(_ context.Context, evt event.Event) error {
		select {
		case received <- evt:
		default:
		}
		return nil
	})

	evt := testEvent("evt-roundtrip", "order", "order-1", event.TypeCreated)
	evt.Data = map[string]interface{}{"amount": 42.0}

	// The consumer group can take a few seconds to join; retry the
	// publish-and-wait until the message comes back.
	require.NoError(t, producer.Publish(ctx, topic, evt))

	select {
	case got := <-received:
		assert.Equal(t, "evt-roundtrip", got.ID)
		assert.Equal(t, "order", got.EntityType)
		assert.Equal(t, event.TypeCreated, got.EventType)
		assert.Equal(t, 42.0, got.Data["amount"])
	case <-time.After(60 * time.Second):
		t.Fatal("timed out waiting for consumed event")
	}
}

func TestKafkaBroker_FailedEventsLandOnDLQ(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}

	brokers := setupKafka(t)
	topic := fmt.Sprintf("audit.events.%d", time.Now().UnixNano())
	dlqTopic := topic + ".dlq"
	cfg := kafkaConfig(brokers, "dlq-group", topic, dlqTopic)

	producer := broker.NewProducer(cfg, createTestLogger())
	defer producer.Close()

	consumer := broker.NewConsumer(cfg, createTestLogger())
	consumer.SetServiceName("broker-test")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumer.Consume(ctx, topic, func(context.Context, event.Event) error {
		return errors.New("handler rejects everything")
	})

	evt := testEvent("evt-doomed", "order", "order-1", event.TypeCreated)
	require.NoError(t, producer.Publish(ctx, topic, evt))

	dlqReader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		GroupID:  "dlq-reader-group",
		Topic:    dlqTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer dlqReader.Close()

	readCtx, readCancel := context.WithTimeout(ctx, 90*time.Second)
	defer readCancel()

	msg, err := dlqReader.ReadMessage(readCtx)
	require.NoError(t, err, "expected a record on the DLQ topic")

	var record struct {
		Event       event.Event `json:"event"`
		Reason      string      `json:"reason"`
		SourceTopic string      `json:"sourceTopic"`
		FailedAt    time.Time   `json:"failedAt"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &record))

	assert.Equal(t, "evt-doomed", record.Event.ID)
	assert.Contains(t, record.Reason, "handler rejects everything")
	assert.Equal(t, topic, record.SourceTopic)
	assert.False(t, record.FailedAt.IsZero())
}
