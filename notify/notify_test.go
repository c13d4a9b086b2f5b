package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/orderflow/notify"
	"github.com/warp/orderflow/production"
)

func finishedEvent() production.Event {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return production.Event{
		Kind: production.EventOrderFinished,
		Order: production.Order{
			ID:          "ord-1",
			ProductID:   "tote",
			VariantID:   "var-1",
			Status:      production.StatusFinished,
			CreatedAt:   at,
			FinishedAt:  &at,
			SalesLineID: "sl-1",
		},
		At: at,
	}
}

func TestLogNotifier_WritesStructuredLine(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := notify.NewLogNotifier(logrus.NewEntry(logger))

	require.NoError(t, n.Notify(context.Background(), finishedEvent()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "production order finished", entry.Message)
	assert.Equal(t, production.EventOrderFinished, entry.Data["event"])
	assert.Contains(t, entry.Data, "sales_line_id")
	assert.NotContains(t, entry.Data, "orders_url")
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	p.channel = channel
	p.payload = message.([]byte)
	cmd.SetVal(1)
	return cmd
}

func TestRedisNotifier_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	n := notify.NewRedisNotifier(pub, "")

	require.NoError(t, n.Notify(context.Background(), finishedEvent()))

	assert.Equal(t, "orderflow.events", pub.channel)
	var got production.Event
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, production.EventOrderFinished, got.Kind)
	assert.Equal(t, production.StatusFinished, got.Order.Status)
}

func TestRedisNotifier_ReturnsPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	n := notify.NewRedisNotifier(pub, "events")

	err := n.Notify(context.Background(), finishedEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ord-1")
}

func TestFanout_DeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	var delivered int
	ok := production.NotifierFunc(func(context.Context, production.Event) error { delivered++; return nil })
	failing := production.NotifierFunc(func(context.Context, production.Event) error { return boom })

	err := notify.Fanout{failing, ok, ok}.Notify(context.Background(), finishedEvent())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, delivered)
	assert.NoError(t, notify.Fanout{ok}.Notify(context.Background(), finishedEvent()))
}
