package analytics

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kslog"
)

// KafkaConfig holds connection settings for the Kafka analytics sink.
type KafkaConfig struct {
	Brokers []string `env:"ANALYTICS_KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"ANALYTICS_KAFKA_TOPIC" envDefault:"taskflow.analytics"`
}

// KafkaTracker produces events to a Kafka topic, keyed by user ID so a
// single user's events stay ordered within a partition. Produce failures are
// logged and dropped; analytics delivery is best-effort by contract.
type KafkaTracker struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

func NewKafkaTracker(cfg KafkaConfig, log *slog.Logger) (*KafkaTracker, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "analytics-kafka")

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.WithLogger(kslog.New(log)),
	)
	if err != nil {
		return nil, err
	}

	return &KafkaTracker{client: client, topic: cfg.Topic, log: log}, nil
}

func (t *KafkaTracker) Track(ctx context.Context, userID uuid.UUID, name EventName, props Properties) {
	event := NewEvent(userID, name, props)

	value, err := json.Marshal(event)
	if err != nil {
		t.log.ErrorContext(ctx, "failed to encode analytics event",
			slog.String("event", string(name)), slog.String("error", err.Error()))
		return
	}

	record := &kgo.Record{
		Topic: t.topic,
		Key:   []byte(userID.String()),
		Value: value,
	}

	t.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			t.log.Error("analytics event produce failed",
				slog.String("event", string(name)), slog.String("error", err.Error()))
		}
	})
}

// Close flushes buffered records and releases the client.
func (t *KafkaTracker) Close(ctx context.Context) error {
	if err := t.client.Flush(ctx); err != nil {
		return err
	}
	t.client.Close()
	return nil
}
