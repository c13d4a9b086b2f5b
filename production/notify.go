package production

import (
	"context"
	"time"
)

// EventKind names a lifecycle notification.
type EventKind string

const (
	EventOrderCreated  EventKind = "order_created"
	EventOrderFinished EventKind = "order_finished"
)

// Event is delivered to a Notifier after the originating unit commits.
type Event struct {
	Kind      EventKind `json:"kind"`
	Order     Order     `json:"order"`
	OrdersURL string    `json:"orders_url,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier delivers events. Failures are logged by the caller, never raised.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }
