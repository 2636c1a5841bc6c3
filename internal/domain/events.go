package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// AlertMembershipChangedEvent is raised when the products in an alert class change
type AlertMembershipChangedEvent struct {
	AlertKey     AlertKey  `json:"alertKey"`
	Count        int       `json:"count"`
	ProductIDs   []string  `json:"productIds"`
	ProductNames []string  `json:"productNames"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
}

func (e *AlertMembershipChangedEvent) EventType() string {
	if e.Count == 0 {
		return "pharmacy.inventory.alert-cleared"
	}
	return "pharmacy.inventory.alert-raised"
}
func (e *AlertMembershipChangedEvent) OccurredAt() time.Time { return e.EvaluatedAt }

// StockAdjustedEvent is raised after the backend accepted a stock adjustment
type StockAdjustedEvent struct {
	Adjustment StockAdjustment `json:"adjustment"`
	AdjustedAt time.Time       `json:"adjustedAt"`
}

func (e *StockAdjustedEvent) EventType() string     { return "pharmacy.inventory.stock-adjusted" }
func (e *StockAdjustedEvent) OccurredAt() time.Time { return e.AdjustedAt }

// NewAlertMembershipChangedEvent builds the event for a class
func NewAlertMembershipChangedEvent(class AlertClass, evaluatedAt time.Time) *AlertMembershipChangedEvent {
	return &AlertMembershipChangedEvent{
		AlertKey:     class.Key,
		Count:        class.Count,
		ProductIDs:   class.ProductIDs(),
		ProductNames: class.ProductNames(),
		EvaluatedAt:  evaluatedAt,
	}
}
