package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/atmosfood/storefront-backend/pkg/pubsub"
)

// Service queues order events in the database. The cron relay publishes them
// to Pub/Sub, so a Pub/Sub outage never fails a checkout.
type Service struct {
	repo *Repository
	db   *gorm.DB
	logg *logger.Logger
}

func NewService(repo *Repository, db *gorm.DB, logg *logger.Logger) *Service {
	return &Service{repo: repo, db: db, logg: logg}
}

// Publish queues evt outside of any caller transaction and returns the event
// id. It satisfies the event publisher the checkout and order services take.
func (s *Service) Publish(ctx context.Context, evt pubsub.OrderEvent) (string, error) {
	return s.Emit(ctx, s.db, evt)
}

// Emit queues evt on tx.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, evt pubsub.OrderEvent) (string, error) {
	if tx == nil {
		return "", errors.New("transaction required")
	}
	if evt.EventType == "" {
		return "", errors.New("event type required")
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("encode order event: %w", err)
	}
	id := uuid.New()
	envelope := PayloadEnvelope{
		Version:    envelopeVersion,
		EventID:    id.String(),
		OccurredAt: evt.OccurredAt,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("encode outbox envelope: %w", err)
	}
	row := models.OutboxEvent{
		ID:             id,
		EventType:      evt.EventType,
		OrderReference: evt.OrderReference,
		Payload:        json.RawMessage(payload),
	}
	if err := s.repo.Insert(ctx, tx, &row); err != nil {
		return "", err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":        envelope.EventID,
			"event_type":      evt.EventType,
			"order_reference": evt.OrderReference,
		}), "outbox event queued")
	}
	return envelope.EventID, nil
}

// Decode unwraps a stored row back into the order event.
func Decode(row models.OutboxEvent) (pubsub.OrderEvent, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return pubsub.OrderEvent{}, fmt.Errorf("decode outbox envelope: %w", err)
	}
	if envelope.Version != envelopeVersion {
		return pubsub.OrderEvent{}, fmt.Errorf("unsupported outbox envelope version %d", envelope.Version)
	}
	var evt pubsub.OrderEvent
	if err := json.Unmarshal(envelope.Data, &evt); err != nil {
		return pubsub.OrderEvent{}, fmt.Errorf("decode order event: %w", err)
	}
	return evt, nil
}
