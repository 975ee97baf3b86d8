// Package kafka publishes compaction events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/bochendong/dragon-continue/pkg/eventstream"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "dragon.compactions"

// Config configures a Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish. Zero means 10 seconds.
	WriteTimeout time.Duration
}

// Publisher writes events with the observation chapter as the message key so
// every rendering of one chapter lands on the same partition.
type Publisher struct {
	writer  *kafkago.Writer
	timeout time.Duration
}

// NewPublisher creates a publisher. No connection is made until the first
// publish.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		timeout: cfg.WriteTimeout,
	}, nil
}

// Topic returns the topic events are written to.
func (p *Publisher) Topic() string {
	return p.writer.Topic
}

// PublishCompaction writes event as one JSON message.
func (p *Publisher) PublishCompaction(ctx context.Context, event *eventstream.CompactionRenderedEvent) error {
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish compaction event: %w", err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NewMessage encodes event as a Kafka message.
func NewMessage(event *eventstream.CompactionRenderedEvent) (kafkago.Message, error) {
	if event == nil {
		return kafkago.Message{}, eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("marshal compaction event: %w", err)
	}

	return kafkago.Message{
		Key:   []byte(strconv.Itoa(event.Request.ObservationChapter)),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	}, nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
