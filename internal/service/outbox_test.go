package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/market-ledger/internal/events"
	"github.com/d60-Lab/market-ledger/internal/model"
)

type capturePublisher struct {
	mu  sync.Mutex
	got []events.Event
	err error
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.got = append(p.got, e)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.got))
	for _, e := range p.got {
		out = append(out, e.Type)
	}
	return out
}

func TestOutboxRelay_PublishesTransitionEvents(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)
	f.advance(t, order.ID, toDelivered...)

	pub := &capturePublisher{}
	relay := NewOutboxRelay(f.store, pub, RelayOptions{BatchSize: 100})
	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)

	types := pub.types()
	assert.Equal(t, len(types), n)
	// seller_notified + five caller transitions, one delivery, two commissions
	assert.Len(t, types, 9)
	assert.Contains(t, types, model.EventOrderDelivered)
	assert.Contains(t, types, model.EventCommissionCalculated)

	var changed events.OrderStatusChanged
	require.NoError(t, pub.got[0].Decode(&changed))
	assert.Equal(t, order.ID, changed.OrderID)
	assert.Equal(t, int64(2), changed.Sequence)

	pending, err := f.store.Outbox.CountByStatus(f.ctx, model.OutboxStatusPending)
	require.NoError(t, err)
	assert.Zero(t, pending)

	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxRelay_RetriesThenGivesUp(t *testing.T) {
	f := newFixture(t)
	f.place(t)

	pub := &capturePublisher{err: errors.New("broker unavailable")}
	relay := NewOutboxRelay(f.store, pub, RelayOptions{MaxAttempts: 2})

	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	pending, err := f.store.Outbox.CountByStatus(f.ctx, model.OutboxStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	_, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	failed, err := f.store.Outbox.CountByStatus(f.ctx, model.OutboxStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), failed)
}

func TestOutboxRelay_StartStop(t *testing.T) {
	f := newFixture(t)
	relay := NewOutboxRelay(f.store, &capturePublisher{}, RelayOptions{})
	stop := relay.Start()
	assert.NoError(t, stop(context.Background()))
}
