package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/turtacn/KinKeep/internal/domain/member"
	"github.com/turtacn/KinKeep/pkg/errors"
)

const schemaVersion = "v1"

// EventEnvelope is the JSON value of every message on the events topic.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode payload")
	}
	return nil
}

// EventPublisher sends member events to one topic, keyed by member id so
// events for the same member stay ordered.
type EventPublisher struct {
	producer *Producer
	topic    string
	source   string
}

func NewEventPublisher(producer *Producer, topic, source string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic, source: source}
}

func (p *EventPublisher) Publish(ctx context.Context, evt *member.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event")
	}
	env := EventEnvelope{
		EventID:       evt.EventID(),
		EventType:     string(evt.Type),
		Source:        p.source,
		Timestamp:     evt.OccurredAt(),
		SchemaVersion: schemaVersion,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return p.producer.Publish(ctx, &Message{
		Topic: p.topic,
		Key:   []byte(evt.AggregateID()),
		Value: value,
		Headers: map[string]string{
			"event_type":     env.EventType,
			"source_service": env.Source,
			"schema_version": env.SchemaVersion,
		},
		Timestamp: env.Timestamp,
	})
}

func (p *EventPublisher) Close() error {
	return p.producer.Close()
}
