package rulepack

import (
	"context"
	"time"

	"planguard/internal/broker"
	"planguard/pkg/metrics"
	"planguard/pkg/models"
)

// PackEventProducer publishes pack-change events to the broker so sibling
// instances and downstream consumers can refresh resolved-pack caches.
type PackEventProducer struct {
	producer broker.Producer
	topic    string
}

func NewPackEventProducer(producer broker.Producer, topic string) *PackEventProducer {
	return &PackEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *PackEventProducer) PublishPackEvent(ctx context.Context, eventType, action string, pack *RulePack, changedBy string) error {
	if p == nil || p.producer == nil || p.topic == "" {
		return nil
	}

	event := models.PackEvent{
		EventType:   eventType,
		PackID:      pack.ID,
		ScopeType:   pack.ScopeType,
		ScopeID:     pack.ScopeID,
		PlanType:    pack.PlanType,
		PackVersion: pack.Version,
		Action:      action,
		Timestamp:   time.Now(),
		ChangedBy:   changedBy,
	}

	err := p.producer.Publish(ctx, p.topic, event)
	if err != nil {
		metrics.PackEventPublishTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.PackEventPublishTotal.WithLabelValues("success").Inc()
	return nil
}
