package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// EventFactory creates CloudEvents for a fixed source
type EventFactory struct {
	source string
	now    func() time.Time
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source, now: time.Now}
}

// CreateEvent creates a new PharmacyCloudEvent with the given parameters
func (f *EventFactory) CreateEvent(
	ctx context.Context,
	eventType string,
	subject string,
	data interface{},
) *PharmacyCloudEvent {
	return &PharmacyCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            f.now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		Extensions:      make(map[string]interface{}),
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
	}
}

// CreateAlertEvent creates an AlertRaised event, or AlertCleared when the
// class has no members left.
func (f *EventFactory) CreateAlertEvent(ctx context.Context, data AlertRaisedData) *PharmacyCloudEvent {
	eventType := AlertRaised
	if data.Count == 0 {
		eventType = AlertCleared
	}
	return f.CreateEvent(ctx, eventType, "alert/"+data.AlertKey, data)
}

// CreateStockAdjustedEvent creates a StockAdjusted event
func (f *EventFactory) CreateStockAdjustedEvent(ctx context.Context, data StockAdjustedData) *PharmacyCloudEvent {
	return f.CreateEvent(ctx, StockAdjusted, "product/"+data.ProductID, data)
}

// CreateResourceChangedEvent creates a change-feed event
func (f *EventFactory) CreateResourceChangedEvent(ctx context.Context, eventType, resource, resourceID string) *PharmacyCloudEvent {
	return f.CreateEvent(ctx, eventType, resource+"/"+resourceID, ResourceChangedData{
		Resource:   resource,
		ResourceID: resourceID,
	})
}
