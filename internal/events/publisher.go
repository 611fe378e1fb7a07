// Package events publishes transcript entries to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"voicebridge/internal/domain"
	"voicebridge/internal/metrics"
)

const eventTypeTranscriptEntry = "voicebridge.transcript.entry"

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers   []string
	Topic     string
	Principal string
	Enabled   bool
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes every appended transcript entry to a Kafka topic. With
// Kafka disabled it only logs the entries.
type Publisher struct {
	writer    messageWriter
	topic     string
	principal string
	enabled   bool
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// TranscriptEvent is the message payload.
type TranscriptEvent struct {
	EventType string                 `json:"eventType"`
	Principal string                 `json:"principal"`
	Entry     domain.TranscriptEntry `json:"entry"`
}

func New(cfg Config, m *metrics.Metrics, log zerolog.Logger) *Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("kafka disabled, transcript events are log-only")
		return &Publisher{topic: cfg.Topic, principal: cfg.Principal, metrics: m, log: log}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("principal", cfg.Principal).
		Msg("kafka publisher initialized")

	return newWithWriter(writer, cfg, m, log)
}

func newWithWriter(writer messageWriter, cfg Config, m *metrics.Metrics, log zerolog.Logger) *Publisher {
	return &Publisher{
		writer:    writer,
		topic:     cfg.Topic,
		principal: cfg.Principal,
		enabled:   true,
		metrics:   m,
		log:       log,
	}
}

// Enabled reports whether entries reach a broker.
func (p *Publisher) Enabled() bool {
	return p.enabled && p.writer != nil
}

// Publish writes one entry keyed by session so a session's entries stay ordered.
func (p *Publisher) Publish(ctx context.Context, entry domain.TranscriptEntry) error {
	start := time.Now()

	payload, err := json.Marshal(TranscriptEvent{
		EventType: eventTypeTranscriptEntry,
		Principal: p.principal,
		Entry:     entry,
	})
	if err != nil {
		return err
	}

	p.log.Debug().
		Str("topic", p.topic).
		Str("key", entry.SessionID).
		RawJSON("payload", payload).
		Msg("publishing transcript entry")

	if !p.Enabled() {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(entry.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventTypeTranscriptEntry)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}
	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.RecordKafkaPublish(p.topic, err, time.Since(start).Seconds())
	if err != nil {
		p.log.Error().Err(err).Str("topic", p.topic).Str("entry", entry.ID).Msg("kafka write failed")
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
