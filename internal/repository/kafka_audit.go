package repository

import (
	"context"

	"optionpulse/internal/domain/models"
	domrepo "optionpulse/internal/domain/repository"
	pkgkafka "optionpulse/pkg/kafka"
)

// KafkaAuditPublisher emits prediction results to the audit topic, keyed by
// symbol so per-symbol ordering survives partitioning.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) domrepo.AuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) Publish(ctx context.Context, r *models.PredictionResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Symbol), map[string]interface{}{
		"symbol":        r.Symbol,
		"ts":            r.Timestamp.UnixMilli(),
		"label":         r.Label,
		"class_index":   r.ClassIndex,
		"probabilities": r.Probabilities,
		"spot":          r.Spot,
	})
}

func (p *KafkaAuditPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopSink discards feature records; the store backend "none".
type NopSink struct{}

func (NopSink) Append(ctx context.Context, rec *models.FeatureRecord) error { return nil }
func (NopSink) Health(ctx context.Context) error                            { return nil }
func (NopSink) Close() error                                                { return nil }
