package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/pharmacy-inventory/pkg/cloudevents"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// ErrFeedUnavailable is returned by Start when a topic keeps failing to fetch
var ErrFeedUnavailable = errors.New("kafka feed unavailable")

// EventHandler is a function that handles a CloudEvent
type EventHandler func(ctx context.Context, event *cloudevents.PharmacyCloudEvent) error

// MessageReader is the subset of *kafka.Reader the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer handles consuming messages from Kafka topics
type Consumer struct {
	config    *Config
	mu        sync.Mutex
	readers   map[string]MessageReader
	handlers  map[string]map[string]EventHandler // topic -> eventType -> handler
	newReader func(topic string) MessageReader
	logger    *slog.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config *Config, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{
		config:   config,
		readers:  make(map[string]MessageReader),
		handlers: make(map[string]map[string]EventHandler),
		logger:   logger,
	}
	c.newReader = c.kafkaReader
	return c
}

// NewConsumerWithReaders creates a consumer that obtains readers from factory
func NewConsumerWithReaders(config *Config, logger *slog.Logger, factory func(topic string) MessageReader) *Consumer {
	c := NewConsumer(config, logger)
	c.newReader = factory
	return c
}

// Subscribe subscribes to a topic with a handler for a specific event type.
// All subscriptions must happen before Start.
func (c *Consumer) Subscribe(topic string, eventType string, handler EventHandler) {
	if _, exists := c.handlers[topic]; !exists {
		c.handlers[topic] = make(map[string]EventHandler)
	}
	c.handlers[topic][eventType] = handler
}

// SubscribeAll subscribes to all event types on a topic with a single handler
func (c *Consumer) SubscribeAll(topic string, handler EventHandler) {
	c.Subscribe(topic, "*", handler)
}

func (c *Consumer) kafkaReader(topic string) MessageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.config.Brokers,
		GroupID:        c.config.ConsumerGroup,
		Topic:          topic,
		MinBytes:       c.config.MinBytes,
		MaxBytes:       c.config.MaxBytes,
		MaxWait:        c.config.MaxWait,
		CommitInterval: c.config.CommitTimeout,
	})
}

// getReader returns a reader for the specified topic, creating one if necessary
func (c *Consumer) getReader(topic string) MessageReader {
	c.mu.Lock()
	defer c.mu.Unlock()

	if reader, exists := c.readers[topic]; exists {
		return reader
	}
	reader := c.newReader(topic)
	c.readers[topic] = reader
	return reader
}

// Start consumes all subscribed topics until ctx is cancelled or one topic
// exceeds MaxConsecutiveErrors, in which case every topic is stopped and an
// error wrapping ErrFeedUnavailable is returned.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(c.handlers))
	var wg sync.WaitGroup
	for topic := range c.handlers {
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			if err := c.consumeTopic(ctx, topic); err != nil {
				errCh <- err
			}
		}(topic)
	}

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errCh:
		cancel()
	}
	wg.Wait()
	return err
}

// consumeTopic consumes messages from a single topic
func (c *Consumer) consumeTopic(ctx context.Context, topic string) error {
	reader := c.getReader(topic)
	c.logger.Info("Starting consumer for topic", "topic", topic, "group", c.config.ConsumerGroup)

	consecutiveErrors := 0
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping consumer for topic", "topic", topic)
				return nil
			}
			consecutiveErrors++
			c.logger.Error("Error fetching message", "topic", topic, "attempt", consecutiveErrors, "error", err)
			if c.config.MaxConsecutiveErrors > 0 && consecutiveErrors >= c.config.MaxConsecutiveErrors {
				return fmt.Errorf("%w: topic %s: %v", ErrFeedUnavailable, topic, err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.config.ErrorBackoff):
			}
			continue
		}
		consecutiveErrors = 0

		event, err := parseMessage(msg)
		if err != nil {
			c.logger.Error("Error parsing message", "topic", topic, "error", err)
			// Commit poison messages so they do not block the partition
			if commitErr := reader.CommitMessages(ctx, msg); commitErr != nil {
				c.logger.Error("Error committing message", "topic", topic, "error", commitErr)
			}
			continue
		}

		if err := c.handleEvent(ctx, topic, event); err != nil {
			c.logger.Error("Error handling event",
				"topic", topic,
				"eventType", event.Type,
				"eventId", event.ID,
				"error", err,
			)
			// Don't commit on handler error - this allows redelivery
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Error committing message", "topic", topic, "error", err)
		}
	}
}

// parseMessage parses a Kafka message into a CloudEvent
func parseMessage(msg kafka.Message) (*cloudevents.PharmacyCloudEvent, error) {
	var event cloudevents.PharmacyCloudEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	for _, header := range msg.Headers {
		switch header.Key {
		case "ce-pharmacycorrelationid":
			event.CorrelationID = string(header.Value)
		case "ce-traceparent":
			event.TraceParent = string(header.Value)
		case "ce-tracestate":
			event.TraceState = string(header.Value)
		}
	}

	return &event, nil
}

// handleEvent routes an event to the appropriate handler
func (c *Consumer) handleEvent(ctx context.Context, topic string, event *cloudevents.PharmacyCloudEvent) error {
	handlers, exists := c.handlers[topic]
	if !exists {
		return fmt.Errorf("no handlers registered for topic %s", topic)
	}

	if event.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, event.CorrelationID)
	}

	if handler, exists := handlers[event.Type]; exists {
		return handler(ctx, event)
	}
	if handler, exists := handlers["*"]; exists {
		return handler(ctx, event)
	}

	c.logger.Warn("No handler found for event type", "topic", topic, "eventType", event.Type)
	return nil
}

// Close closes all readers
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close reader for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
