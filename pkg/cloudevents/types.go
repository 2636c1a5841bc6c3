package cloudevents

import (
	"time"
)

// EventType constants for pharmacy inventory events
const (
	// Published by this service
	AlertRaised   = "pharmacy.inventory.alert-raised"
	AlertCleared  = "pharmacy.inventory.alert-cleared"
	StockAdjusted = "pharmacy.inventory.stock-adjusted"

	// Change-feed events emitted next to the PHP backend
	PurchaseOrderChanged = "pharmacy.purchasing.order-changed"
	ProductChanged       = "pharmacy.inventory.product-changed"
)

// Source constants for event sources
const (
	SourceInventoryService = "/pharmacy/inventory-service"
	SourcePHPBackend       = "/pharmacy/php-api"
)

// PharmacyCloudEvent represents a CloudEvents v1.0 compliant event
type PharmacyCloudEvent struct {
	SpecVersion     string                 `json:"specversion"`
	Type            string                 `json:"type"`
	Source          string                 `json:"source"`
	Subject         string                 `json:"subject,omitempty"`
	ID              string                 `json:"id"`
	Time            time.Time              `json:"time"`
	DataContentType string                 `json:"datacontenttype"`
	Data            interface{}            `json:"data"`
	Extensions      map[string]interface{} `json:"-"`

	CorrelationID string `json:"pharmacycorrelationid,omitempty"`

	// W3C trace context, carried as ce-traceparent headers
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// AlertRaisedData is the payload of AlertRaised and AlertCleared events
type AlertRaisedData struct {
	AlertKey     string    `json:"alertKey"`
	Count        int       `json:"count"`
	ProductIDs   []string  `json:"productIds"`
	ProductNames []string  `json:"productNames"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
}

// StockAdjustedData is the payload of a StockAdjusted event
type StockAdjustedData struct {
	ProductID      string `json:"productId"`
	QuantityChange int    `json:"quantityChange"`
	AdjustmentType string `json:"adjustmentType"`
	Reason         string `json:"reason"`
	AdjustedBy     string `json:"adjustedBy,omitempty"`
}

// ResourceChangedData is the payload of change-feed events. Consumers only
// need to know which collection went stale.
type ResourceChangedData struct {
	Resource   string `json:"resource"`
	ResourceID string `json:"resourceId,omitempty"`
}
