package events

import (
	"context"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMuxRunsHandlersThenForwards(t *testing.T) {
	var calls []string
	next := PublisherFunc(func(_ context.Context, e Event) error {
		calls = append(calls, "next:"+e.Type)
		return nil
	})
	m := NewMux(next)
	m.Handle("order.delivered", func(_ context.Context, e Event) error {
		calls = append(calls, "local:"+e.AggregateID)
		return nil
	})

	require.NoError(t, m.Publish(context.Background(), Event{Type: "order.delivered", AggregateID: "o1"}))
	require.NoError(t, m.Publish(context.Background(), Event{Type: "order.status_changed", AggregateID: "o1"}))

	assert.Equal(t, []string{"local:o1", "next:order.delivered", "next:order.status_changed"}, calls)
}

func TestMuxStopsOnHandlerError(t *testing.T) {
	forwarded := false
	m := NewMux(PublisherFunc(func(context.Context, Event) error {
		forwarded = true
		return nil
	}))
	m.Handle("order.delivered", func(context.Context, Event) error { return errors.New("boom") })

	err := m.Publish(context.Background(), Event{Type: "order.delivered"})
	assert.ErrorContains(t, err, "boom")
	assert.False(t, forwarded)
}

func TestKafkaPublisherSendsPayload(t *testing.T) {
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, conf)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"order_id":"o1"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherFromProducer(producer, "ledger.events")
	ev := Event{ID: "e1", Type: "order.delivered", AggregateID: "o1", Payload: []byte(`{"order_id":"o1"}`)}

	require.NoError(t, pub.Publish(context.Background(), ev))
	assert.ErrorIs(t, pub.Publish(context.Background(), ev), sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestEventDecode(t *testing.T) {
	var p OrderDelivered
	require.NoError(t, Event{Payload: []byte(`{"order_id":"o9","seller_ids":["a"]}`)}.Decode(&p))
	assert.Equal(t, "o9", p.OrderID)
	assert.Equal(t, []string{"a"}, p.SellerIDs)
}
