package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/quantfold/rulebot/internal/indicator"
)

// Publisher is the notification collaborator: a single best-effort
// publish call per event.
type Publisher interface {
	// PublishIndicatorUpdate fans an indicator snapshot out to subscribers.
	PublishIndicatorUpdate(ctx context.Context, symbol string, snap indicator.Snapshot) error

	// PublishEvent emits a domain event.
	PublishEvent(ctx context.Context, evt Event) error

	// Close releases producer resources.
	Close() error
}

// kafkaPublisher writes events to two topics: indicator updates on one,
// domain events on the other.
type kafkaPublisher struct {
	indicators *kafka.Writer
	domain     *kafka.Writer
}

// NewKafkaPublisher creates a Publisher against the given broker.
func NewKafkaPublisher(broker, indicatorTopic, domainTopic string) Publisher {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		}
	}
	return &kafkaPublisher{
		indicators: newWriter(indicatorTopic),
		domain:     newWriter(domainTopic),
	}
}

func (p *kafkaPublisher) PublishIndicatorUpdate(ctx context.Context, symbol string, snap indicator.Snapshot) error {
	update := IndicatorUpdate{
		Symbol:     symbol,
		Indicators: snap,
		ComputedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal indicator update: %w", err)
	}

	err = p.indicators.WriteMessages(ctx, kafka.Message{
		Key:   []byte(symbol),
		Value: raw,
	})
	if err != nil {
		return fmt.Errorf("publish indicator update for %s: %w", symbol, err)
	}
	return nil
}

func (p *kafkaPublisher) PublishEvent(ctx context.Context, evt Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", evt.Type, err)
	}

	err = p.domain.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Subject),
		Value: raw,
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", evt.Type, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	if err := p.indicators.Close(); err != nil {
		p.domain.Close()
		return err
	}
	return p.domain.Close()
}
