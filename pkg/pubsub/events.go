package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

const (
	EventOrderPlaced    = "order.placed"
	EventOrderConfirmed = "order.confirmed"
	EventOrderStatus    = "order.status_changed"

	defaultPublishTimeout = 10 * time.Second
)

// OrderEvent is the message body published for order lifecycle changes.
type OrderEvent struct {
	EventType      string    `json:"eventType"`
	OrderReference string    `json:"orderReference"`
	OrderID        string    `json:"orderId,omitempty"`
	SessionID      string    `json:"sessionId"`
	DeliveryMethod string    `json:"deliveryMethod"`
	PaymentMethod  string    `json:"paymentMethod"`
	TotalAmount    int64     `json:"totalAmount"`
	ItemCount      int       `json:"itemCount"`
	Status         string    `json:"status,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisher interface {
	Publish(context.Context, *pubsub.Message) publishResult
}

// OrderEventPublisher sends OrderEvents to the orders topic.
type OrderEventPublisher struct {
	pub     publisher
	timeout time.Duration
}

// NewOrderEventPublisher wraps a topic publisher. A nil publisher returns nil,
// and a nil *OrderEventPublisher drops events.
func NewOrderEventPublisher(p *pubsub.Publisher) *OrderEventPublisher {
	if p == nil {
		return nil
	}
	return &OrderEventPublisher{pub: &gcpPublisher{Publisher: p}, timeout: defaultPublishTimeout}
}

// Publish sends evt and waits for the server ack.
func (p *OrderEventPublisher) Publish(ctx context.Context, evt OrderEvent) (string, error) {
	if p == nil || p.pub == nil {
		return "", nil
	}
	if evt.EventType == "" {
		return "", errors.New("event type is required")
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("marshal order event: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":      evt.EventType,
			"order_reference": evt.OrderReference,
			"occurred_at":     evt.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result := p.pub.Publish(publishCtx, msg)
	if result == nil {
		return "", fmt.Errorf("publisher returned nil for %s", evt.EventType)
	}
	return result.Get(publishCtx)
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*pubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
