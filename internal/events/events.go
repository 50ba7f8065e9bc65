// Package events defines the domain events emitted after a successful commit
// and the Notifier sinks they are delivered to.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	OrderCreated   Type = "order.created"
	OrderUpdated   Type = "order.updated"
	OrderCompleted Type = "order.completed"
	OrderCanceled  Type = "order.canceled"
	OrderDeleted   Type = "order.deleted"
	StockChanged   Type = "stock.changed"
	CouponIssued   Type = "coupon.issued"
)

// Event is the envelope shared by the websocket feed and the Kafka topic.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	StoreID    uuid.UUID `json:"store_id"` // uuid.Nil: not tied to one store
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(t Type, storeID uuid.UUID, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		StoreID:    storeID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Notifier receives events after commit. Implementations must not block the
// caller for long and report their own failures.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(context.Context, Event) {})

// Fanout delivers each event to every non-nil notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, e Event) {
	for _, n := range f {
		if n != nil {
			n.Notify(ctx, e)
		}
	}
}
