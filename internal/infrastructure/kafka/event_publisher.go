package kafka

import (
	"context"
	"fmt"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/cloudevents"
	"github.com/wms-platform/pharmacy-inventory/pkg/kafka"
)

// EventPublisher implements application.EventPublisher using Kafka
type EventPublisher struct {
	producer     kafka.EventPublisher
	eventFactory *cloudevents.EventFactory
}

// NewEventPublisher creates a new Kafka-based event publisher. producer is
// normally a *kafka.InstrumentedProducer.
func NewEventPublisher(producer kafka.EventPublisher, eventFactory *cloudevents.EventFactory) *EventPublisher {
	return &EventPublisher{
		producer:     producer,
		eventFactory: eventFactory,
	}
}

// PublishAlertChanged publishes AlertRaised, or AlertCleared once the class is empty
func (p *EventPublisher) PublishAlertChanged(ctx context.Context, event *domain.AlertMembershipChangedEvent) error {
	ce := p.eventFactory.CreateAlertEvent(ctx, cloudevents.AlertRaisedData{
		AlertKey:     string(event.AlertKey),
		Count:        event.Count,
		ProductIDs:   event.ProductIDs,
		ProductNames: event.ProductNames,
		EvaluatedAt:  event.EvaluatedAt,
	})

	if err := p.producer.PublishEvent(ctx, kafka.Topics.AlertEvents, ce); err != nil {
		return fmt.Errorf("failed to publish event to kafka: %w", err)
	}
	return nil
}

// PublishStockAdjusted publishes a StockAdjusted event
func (p *EventPublisher) PublishStockAdjusted(ctx context.Context, event *domain.StockAdjustedEvent) error {
	ce := p.eventFactory.CreateStockAdjustedEvent(ctx, cloudevents.StockAdjustedData{
		ProductID:      event.Adjustment.ProductID,
		QuantityChange: event.Adjustment.QuantityChange,
		AdjustmentType: string(event.Adjustment.Type),
		Reason:         event.Adjustment.Reason,
		AdjustedBy:     event.Adjustment.AdjustedBy,
	})

	if err := p.producer.PublishEvent(ctx, kafka.Topics.InventoryEvents, ce); err != nil {
		return fmt.Errorf("failed to publish event to kafka: %w", err)
	}
	return nil
}

// NopPublisher discards every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishAlertChanged(context.Context, *domain.AlertMembershipChangedEvent) error {
	return nil
}

func (NopPublisher) PublishStockAdjusted(context.Context, *domain.StockAdjustedEvent) error {
	return nil
}
