package kafka

import (
	"context"

	"github.com/wms-platform/pharmacy-inventory/internal/application"
	"github.com/wms-platform/pharmacy-inventory/pkg/cloudevents"
	"github.com/wms-platform/pharmacy-inventory/pkg/kafka"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
	"github.com/wms-platform/pharmacy-inventory/pkg/metrics"
)

// topicResources maps change-feed topics to the resource they invalidate
var topicResources = map[string]string{
	kafka.Topics.PurchaseOrderChanges: application.ResourcePurchaseOrders,
	kafka.Topics.ProductChanges:       application.ResourceProducts,
}

// ChangeFeed implements application.ChangeFeed on the backend's Kafka
// change topics. Each Run uses a fresh consumer, so a feed that failed can
// be run again later.
type ChangeFeed struct {
	config    *kafka.Config
	logger    *logging.Logger
	metrics   *metrics.Metrics
	newReader func(topic string) kafka.MessageReader
}

// NewChangeFeed creates a new ChangeFeed. m may be nil.
func NewChangeFeed(config *kafka.Config, logger *logging.Logger, m *metrics.Metrics) *ChangeFeed {
	return &ChangeFeed{
		config:  config,
		logger:  logger.WithComponent("change-feed"),
		metrics: m,
	}
}

// Run consumes the change topics until ctx is cancelled or the brokers stay
// unreachable, in which case the returned error wraps kafka.ErrFeedUnavailable.
func (f *ChangeFeed) Run(ctx context.Context, onChange func(ctx context.Context, resource string) error) error {
	var consumer *kafka.Consumer
	if f.newReader != nil {
		consumer = kafka.NewConsumerWithReaders(f.config, f.logger.Logger, f.newReader)
	} else {
		consumer = kafka.NewConsumer(f.config, f.logger.Logger)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			f.logger.Warn("Failed to close change feed consumer", "error", err)
		}
	}()

	for topic, resource := range topicResources {
		resource := resource
		consumer.SubscribeAll(topic, kafka.InstrumentHandler(topic, f.metrics,
			func(ctx context.Context, event *cloudevents.PharmacyCloudEvent) error {
				f.logger.WithContext(ctx).Debug("Change notification received",
					"resource", resource,
					"eventType", event.Type,
					"subject", event.Subject,
				)
				return onChange(ctx, resource)
			}))
	}

	return consumer.Start(ctx)
}
