// Package events publishes checkout lifecycle events for downstream consumers
// such as fulfilment and analytics.
package events

import (
	"context"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/jsonx"
)

// Type identifies a checkout event.
type Type string

const (
	OrderPlaced        Type = "order.placed"
	PaymentInitiated   Type = "payment.initiated"
	PaymentConfirmed   Type = "payment.confirmed"
	PaymentFailed      Type = "payment.failed"
	CardRedirectIssued Type = "payment.card_redirect"
)

// Event is a single checkout fact.
type Event struct {
	Type        Type
	SessionID   string
	OrderID     string
	OrderNumber string
	PaymentID   string
	Method      string
	Amount      decimal.Decimal
	At          time.Time
}

// Key returns the partition key: events of one order stay ordered.
func (e Event) Key() []byte {
	if e.OrderID != "" {
		return []byte(e.OrderID)
	}
	return []byte(e.SessionID)
}

// Encode renders the event as JSON.
func (e Event) Encode() []byte {
	var w jx.Encoder
	w.Obj(func(w *jx.Encoder) {
		w.Field("type", func(w *jx.Encoder) { w.Str(string(e.Type)) })
		w.Field("session_id", func(w *jx.Encoder) { w.Str(e.SessionID) })
		if e.OrderID != "" {
			w.Field("order_id", func(w *jx.Encoder) { w.Str(e.OrderID) })
		}
		if e.OrderNumber != "" {
			w.Field("order_number", func(w *jx.Encoder) { w.Str(e.OrderNumber) })
		}
		if e.PaymentID != "" {
			w.Field("payment_id", func(w *jx.Encoder) { w.Str(e.PaymentID) })
		}
		if e.Method != "" {
			w.Field("method", func(w *jx.Encoder) { w.Str(e.Method) })
		}
		w.Field("amount", func(w *jx.Encoder) { jsonx.Decimal(w, e.Amount) })
		w.Field("at", func(w *jx.Encoder) { w.Str(e.At.UTC().Format(time.RFC3339Nano)) })
	})
	return w.Bytes()
}

// Publisher delivers events. Implementations must not block on the broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
