/*
Package notify delivers production lifecycle events.

PURPOSE:
  production.Service fires order_created and order_finished events after
  the originating unit commits. This package provides the sinks:

    LogNotifier:   writes one structured log line per event (always on)
    RedisNotifier: publishes the event as JSON on a Redis channel
    Fanout:        delivers to several notifiers, joining their errors

DELIVERY:
  Best effort. A failing sink returns its error; the service logs it and
  moves on. Nothing here retries.

SEE ALSO:
  - production/notify.go: Event and Notifier
*/
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/warp/orderflow/production"
)

// =============================================================================
// LOG
// =============================================================================

// LogNotifier logs every event at info level.
type LogNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier(log *logrus.Entry) *LogNotifier {
	if log == nil {
		log = logrus.WithField("component", "notify")
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, e production.Event) error {
	fields := logrus.Fields{
		"event":      e.Kind,
		"order_id":   e.Order.ID,
		"product_id": e.Order.ProductID,
		"variant_id": e.Order.VariantID,
		"status":     e.Order.Status,
	}
	if e.Order.SalesLineID != "" {
		fields["sales_line_id"] = e.Order.SalesLineID
	}
	if e.Order.Urgent {
		fields["urgent"] = true
	}
	if e.OrdersURL != "" {
		fields["orders_url"] = e.OrdersURL
	}
	n.log.WithFields(fields).Info(message(e))
	return nil
}

func message(e production.Event) string {
	switch e.Kind {
	case production.EventOrderCreated:
		return "new production order"
	case production.EventOrderFinished:
		return "production order finished"
	}
	return string(e.Kind)
}

// =============================================================================
// REDIS
// =============================================================================

// Publisher is the subset of a Redis client RedisNotifier needs.
// *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes events as JSON to a pub/sub channel.
type RedisNotifier struct {
	client  Publisher
	channel string
}

func NewRedisNotifier(client Publisher, channel string) *RedisNotifier {
	if channel == "" {
		channel = "orderflow.events"
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, e production.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s for order %s: %w", e.Kind, e.Order.ID, err)
	}
	return nil
}

// =============================================================================
// FANOUT
// =============================================================================

// Fanout delivers each event to every notifier, even after a failure.
type Fanout []production.Notifier

func (f Fanout) Notify(ctx context.Context, e production.Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ production.Notifier = (*LogNotifier)(nil)
	_ production.Notifier = (*RedisNotifier)(nil)
	_ production.Notifier = Fanout(nil)
)
