package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
)

// KafkaNotifier writes alerts to the Kafka topic named by the alert, keyed by user
// so one user's alerts stay ordered within a partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
}

// NewKafkaNotifier connects a synchronous producer to the brokers.
func NewKafkaNotifier(brokers []string) (*KafkaNotifier, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_5_0_0
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(producer), nil
}

// NewKafkaNotifierWithProducer wraps an existing producer.
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Publish(_ context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: alert.Topic,
		Key:   sarama.StringEncoder(alert.UserID),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("send kafka message: %w", err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}
