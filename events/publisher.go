// Package events publishes tagging lifecycle events so that caches and search
// indexes in the host application can follow tag changes.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"cms-tags/models"
)

type Action string

const (
	TagCreated Action = "tag_created"
	TagUpdated Action = "tag_updated"
	TagDeleted Action = "tag_deleted"
	Tagged     Action = "tagged"
	Untagged   Action = "untagged"
)

type TaggingEvent struct {
	Action  Action            `json:"action"`
	TagID   uint              `json:"tag_id"`
	Title   string            `json:"title"`
	SiteID  uint              `json:"site_id"`
	Entity  *models.EntityRef `json:"entity,omitempty"`
	ActorID *uint             `json:"actor_id,omitempty"`
	At      time.Time         `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event TaggingEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TaggingEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by tag id so
// that events for one tag stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, clientID, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Transport: &kafka.Transport{
				ClientID: clientID,
			},
		},
		topic:  topic,
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event TaggingEvent) error {
	msg, err := encode(event)
	if err != nil {
		p.logger.Error("Failed to marshal tagging event", zap.String("action", string(event.Action)), zap.Error(err))
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish tagging event",
			zap.String("topic", p.topic),
			zap.String("action", string(event.Action)),
			zap.Uint("tag_id", event.TagID),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Tagging event published",
		zap.String("topic", p.topic),
		zap.String("action", string(event.Action)),
		zap.Uint("tag_id", event.TagID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.String("topic", p.topic), zap.Error(err))
		return err
	}
	return nil
}

func encode(event TaggingEvent) (kafka.Message, error) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(event.TagID), 10)),
		Value: value,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
		},
	}, nil
}
