// Package events publishes interview and delivery events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"interview-assistant-service/internal/models"
	"interview-assistant-service/internal/observability/metrics"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes events to separate Kafka topics for pipeline
// outcomes and message deliveries.
type Publisher struct {
	writerInterviews messageWriter
	writerDeliveries messageWriter
	principal        string
	topicInterviews  string
	topicDeliveries  string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicInterviews string
	TopicDeliveries string
	Principal       string
	Enabled         bool
}

// New creates a Kafka event publisher. With Kafka disabled or no brokers
// configured, events are only logged.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicInterviews: cfg.TopicInterviews,
			topicDeliveries: cfg.TopicDeliveries,
			enabled:         false,
			metrics:         m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicInterviews", cfg.TopicInterviews).
		Str("topicDeliveries", cfg.TopicDeliveries).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerInterviews: newWriter(cfg.TopicInterviews),
		writerDeliveries: newWriter(cfg.TopicDeliveries),
		principal:        cfg.Principal,
		topicInterviews:  cfg.TopicInterviews,
		topicDeliveries:  cfg.TopicDeliveries,
		enabled:          true,
		metrics:          m,
	}
}

// PublishInterview publishes a pipeline outcome keyed by request id.
func (p *Publisher) PublishInterview(ctx context.Context, event models.InterviewEvent) error {
	return p.publish(ctx, p.writerInterviews, p.topicInterviews, event.EventType, event.RequestID, event)
}

// PublishDelivery publishes an inbound message outcome keyed by message id.
func (p *Publisher) PublishDelivery(ctx context.Context, event models.DeliveryEvent) error {
	return p.publish(ctx, p.writerDeliveries, p.topicDeliveries, event.EventType, event.MessageID, event)
}

func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerInterviews != nil {
		if e := p.writerInterviews.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing interviews writer")
			err = e
		}
	}
	if p.writerDeliveries != nil {
		if e := p.writerDeliveries.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing deliveries writer")
			err = e
		}
	}
	return err
}
