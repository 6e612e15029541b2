package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is an order event waiting to be relayed to Pub/Sub.
type OutboxEvent struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EventType      string          `gorm:"column:event_type;type:text;not null"`
	OrderReference string          `gorm:"column:order_reference;not null;index"`
	Payload        json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	PublishedAt    *time.Time      `gorm:"column:published_at"`
	AttemptCount   int             `gorm:"column:attempt_count;not null;default:0"`
	LastError      *string         `gorm:"column:last_error"`
}
