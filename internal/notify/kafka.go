package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"redblood/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces events to a single topic keyed by request id,
// so every event for one request lands on the same partition in order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event types.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.RequestID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce %s event: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// Consumer reads events from the topic as part of a consumer group.
type Consumer struct {
	client *kgo.Client
	logger logrus.FieldLogger
}

func NewConsumer(brokers []string, topic, group string, logger logrus.FieldLogger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{client: client, logger: logger}, nil
}

// Run polls until ctx is cancelled, decoding each record and passing it to handle.
// Records that fail to decode or handle are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle func(context.Context, types.Event) error) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.WithError(err).WithFields(logrus.Fields{
				"topic":     topic,
				"partition": partition,
			}).Error("fetch failed")
		})

		fetches.EachRecord(func(record *kgo.Record) {
			var event types.Event
			if err := json.Unmarshal(record.Value, &event); err != nil {
				c.logger.WithError(err).WithField("offset", record.Offset).Warn("skipping undecodable event")
				return
			}
			if err := handle(ctx, event); err != nil {
				c.logger.WithError(err).WithFields(logrus.Fields{
					"event_id":   event.ID,
					"event_type": event.Type,
				}).Error("failed to handle event")
			}
		})
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
