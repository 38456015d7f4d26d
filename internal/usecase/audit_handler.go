package usecase

import (
	"context"
	"encoding/json"
	"time"

	drepo "optionpulse/internal/domain/repository"
	pkgkafka "optionpulse/pkg/kafka"
)

// auditStore is the write side needed to persist audit rows.
type auditStore interface {
	InsertAudit(ctx context.Context, ts time.Time, symbol, label string, classIndex int, probabilities string, spot float64) error
}

// KafkaAuditHandler consumes prediction audit messages and writes them to
// the audit table.
type KafkaAuditHandler struct {
	topic   string
	store   auditStore
	metrics drepo.Metrics
}

func NewKafkaAuditHandler(topic string, store auditStore, metrics drepo.Metrics) *KafkaAuditHandler {
	return &KafkaAuditHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaAuditHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, ts, label, class_index, probabilities, spot}
func (h *KafkaAuditHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol        string             `json:"symbol"`
		TS            int64              `json:"ts"`
		Label         string             `json:"label"`
		ClassIndex    int                `json:"class_index"`
		Probabilities map[string]float64 `json:"probabilities"`
		Spot          float64            `json:"spot"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	ts := time.UnixMilli(m.TS)
	h.metrics.RecordLatency("audit_e2e_seconds", time.Since(ts).Seconds())

	probs, err := json.Marshal(m.Probabilities)
	if err != nil {
		h.metrics.RecordError("consumer_marshal")
		return err
	}

	start := time.Now()
	if err := h.store.InsertAudit(ctx, ts, m.Symbol, m.Label, m.ClassIndex, string(probs), m.Spot); err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordLatency("audit_insert_seconds", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaAuditHandler)(nil)
