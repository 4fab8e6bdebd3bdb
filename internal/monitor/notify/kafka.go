package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	monitor "reachstacker-monitor/internal/monitor/domain"
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes notifications as JSON, keyed by unit id.
type KafkaSink struct {
	writer  MessageWriter
	logger  *log.Logger
	timeout time.Duration
}

// NewKafkaWriter builds a writer for the notification topic.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka sink: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka sink: empty topic")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}, nil
}

// NewKafkaSink constructs a sink over writer.
func NewKafkaSink(writer MessageWriter, logger *log.Logger) (*KafkaSink, error) {
	if writer == nil {
		return nil, errors.New("kafka sink: nil writer")
	}
	return &KafkaSink{writer: writer, logger: logger, timeout: 5 * time.Second}, nil
}

// Notify implements Sink. Publish failures are logged and dropped.
func (k *KafkaSink) Notify(ctx context.Context, notification monitor.Notification) {
	if k == nil {
		return
	}
	if err := k.Publish(ctx, notification); err != nil && k.logger != nil {
		k.logger.Printf("notify: kafka publish failed id=%s err=%v", notification.ID, err)
	}
}

// Publish writes one notification.
func (k *KafkaSink) Publish(ctx context.Context, notification monitor.Notification) error {
	value, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(notification.UnitID),
		Value: value,
		Time:  notification.At,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(notification.Kind)},
			{Key: "tag", Value: []byte(notification.Tag)},
		},
	})
}

// Close closes the writer.
func (k *KafkaSink) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
