// Package events carries ledger domain events from the outbox to consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/pkg/logger"
)

// Event is one outbox row as seen by publishers.
type Event struct {
	ID          string
	Type        string
	AggregateID string
	Payload     []byte
	OccurredAt  time.Time
}

// Publisher delivers an event. Returning an error leaves it in the outbox for retry.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

type OrderStatusChanged struct {
	OrderID   string   `json:"order_id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	ActorID   string   `json:"actor_id"`
	Sequence  int64    `json:"sequence"`
	SellerIDs []string `json:"seller_ids"`
}

type OrderDelivered struct {
	OrderID     string    `json:"order_id"`
	SellerIDs   []string  `json:"seller_ids"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type CommissionCalculated struct {
	CommissionID string          `json:"commission_id"`
	OrderID      string          `json:"order_id"`
	SellerID     string          `json:"seller_id"`
	Amount       decimal.Decimal `json:"amount"`
	Rate         decimal.Decimal `json:"rate"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	logger.Debug("event published",
		zap.String("event_id", e.ID),
		zap.String("type", e.Type),
		zap.String("aggregate_id", e.AggregateID))
	return nil
}
