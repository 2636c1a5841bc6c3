package kafka

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/pharmacy-inventory/pkg/cloudevents"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
	"github.com/wms-platform/pharmacy-inventory/pkg/metrics"
	"github.com/wms-platform/pharmacy-inventory/pkg/tracing"
)

// EventPublisher publishes CloudEvents to a topic
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.PharmacyCloudEvent) error
}

// InstrumentedProducer wraps a Producer with metrics and tracing
type InstrumentedProducer struct {
	producer EventPublisher
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewInstrumentedProducer creates a new instrumented producer
func NewInstrumentedProducer(producer EventPublisher, m *metrics.Metrics, logger *logging.Logger) *InstrumentedProducer {
	return &InstrumentedProducer{
		producer: producer,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("kafka-producer"),
	}
}

// PublishEvent publishes a CloudEvent with metrics and tracing. The current
// trace context is copied onto the event before it is written.
func (p *InstrumentedProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.PharmacyCloudEvent) error {
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "kafka.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(tracing.MessagingSpanAttributes("kafka", topic, "publish")...),
		trace.WithAttributes(
			attribute.String("messaging.kafka.event_type", event.Type),
			attribute.String("messaging.message_id", event.ID),
		),
	)
	defer span.End()

	carrier := tracing.MapCarrier{}
	tracing.InjectTraceContext(ctx, carrier)
	if tp := carrier.Get("traceparent"); tp != "" {
		event.TraceParent = tp
		event.TraceState = carrier.Get("tracestate")
	}
	if event.CorrelationID == "" {
		event.CorrelationID = logging.CorrelationIDFromContext(ctx)
	}

	err := p.producer.PublishEvent(ctx, topic, event)
	duration := time.Since(start)
	success := err == nil

	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, event.Type, success)
	}
	if p.logger != nil {
		p.logger.Performance(ctx, "kafka.publish", duration, success, map[string]any{
			"topic":     topic,
			"eventType": event.Type,
		})
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// InstrumentHandler wraps an EventHandler so each delivery is traced as a
// child of the producer span and counted.
func InstrumentHandler(topic string, m *metrics.Metrics, handler EventHandler) EventHandler {
	tracer := otel.Tracer("kafka-consumer")
	return func(ctx context.Context, event *cloudevents.PharmacyCloudEvent) error {
		if event.TraceParent != "" {
			ctx = tracing.ExtractTraceContext(ctx, tracing.MapCarrier{
				"traceparent": event.TraceParent,
				"tracestate":  event.TraceState,
			})
		}

		ctx, span := tracer.Start(ctx, "kafka.consume",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(tracing.MessagingSpanAttributes("kafka", topic, "process")...),
			trace.WithAttributes(attribute.String("messaging.kafka.event_type", event.Type)),
		)
		defer span.End()

		err := handler(ctx, event)
		if m != nil {
			m.RecordKafkaConsume(topic, event.Type, err == nil)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}
