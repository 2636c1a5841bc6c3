package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// Consumer settings
	MinBytes      int
	MaxBytes      int
	MaxWait       time.Duration
	CommitTimeout time.Duration

	// MaxConsecutiveErrors is the number of back-to-back fetch failures after
	// which Start gives up and returns ErrFeedUnavailable. Zero means never.
	MaxConsecutiveErrors int
	ErrorBackoff         time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "pharmacy-inventory-group",
		ClientID:      "pharmacy-inventory",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1, // All replicas

		MinBytes:      1,
		MaxBytes:      10e6, // 10MB
		MaxWait:       500 * time.Millisecond,
		CommitTimeout: 5 * time.Second,

		MaxConsecutiveErrors: 5,
		ErrorBackoff:         time.Second,
	}
}

// Topics contains the pharmacy Kafka topic names
var Topics = struct {
	// Change feed published next to the PHP backend
	PurchaseOrderChanges string
	ProductChanges       string

	// Events published by this service
	AlertEvents     string
	InventoryEvents string
}{
	PurchaseOrderChanges: "pharmacy.purchase-orders.changes",
	ProductChanges:       "pharmacy.products.changes",

	AlertEvents:     "pharmacy.alerts.events",
	InventoryEvents: "pharmacy.inventory.events",
}
