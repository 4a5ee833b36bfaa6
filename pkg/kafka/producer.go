package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ramsey-B/tulip/pkg/metrics"
	"github.com/Ramsey-B/tulip/pkg/tracing"
)

// Config holds Kafka configuration
type Config struct {
	Brokers    []string
	EventTopic string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, eventTopic string) Config {
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	return Config{
		Brokers:    brokerList,
		EventTopic: eventTopic,
	}
}

// Producer publishes sync lifecycle events to Kafka. A nil *Producer is
// valid and drops events, so brokerless deployments need no special casing.
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.EventTopic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
		// Without this, a first publish may fail with "Unknown Topic Or Partition".
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.EventTopic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

// SyncEventMessage announces a completed reconciliation cycle
type SyncEventMessage struct {
	Type      string    `json:"type"` // "sync.completed"
	Mode      string    `json:"mode"` // "full" | "fast"
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Deleted   int       `json:"deleted"`
	Errors    int       `json:"errors"`
	Skipped   bool      `json:"skipped"`
	Timestamp time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// IngestEventMessage announces a completed listings feed ingest
type IngestEventMessage struct {
	Type      string    `json:"type"` // "ingest.completed"
	Received  int       `json:"received"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Timestamp time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// PublishSyncEvent publishes a sync lifecycle event.
func (p *Producer) PublishSyncEvent(ctx context.Context, msg *SyncEventMessage) error {
	if p == nil {
		return nil
	}
	if msg == nil {
		return fmt.Errorf("sync event is nil")
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishSyncEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("sync.mode", msg.Mode),
	)

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.TraceID = tracing.GetTraceID(ctx)
	msg.SpanID = tracing.GetSpanID(ctx)

	key := fmt.Sprintf("sync:%s", msg.Mode)
	headers := []kafka.Header{
		{Key: "type", Value: []byte(msg.Type)},
		{Key: "mode", Value: []byte(msg.Mode)},
	}

	if err := p.publish(ctx, span, key, headers, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish sync event to Kafka topic %s", p.topic)
		return err
	}

	p.logger.WithContext(ctx).Debugf("Published sync event: mode=%s created=%d updated=%d deleted=%d",
		msg.Mode, msg.Created, msg.Updated, msg.Deleted)
	return nil
}

// PublishIngestEvent publishes a feed ingest lifecycle event.
func (p *Producer) PublishIngestEvent(ctx context.Context, msg *IngestEventMessage) error {
	if p == nil {
		return nil
	}
	if msg == nil {
		return fmt.Errorf("ingest event is nil")
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishIngestEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
	)

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.TraceID = tracing.GetTraceID(ctx)
	msg.SpanID = tracing.GetSpanID(ctx)

	headers := []kafka.Header{
		{Key: "type", Value: []byte(msg.Type)},
	}

	if err := p.publish(ctx, span, "ingest", headers, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish ingest event to Kafka topic %s", p.topic)
		return err
	}
	return nil
}

func (p *Producer) publish(ctx context.Context, span trace.Span, key string, headers []kafka.Header, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// W3C trace context header for downstream consumers
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		metrics.RecordKafkaPublish(p.topic, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "success")
	span.SetStatus(codes.Ok, "message published")
	return nil
}

// Stats returns producer statistics
func (p *Producer) Stats() kafka.WriterStats {
	return p.writer.Stats()
}
