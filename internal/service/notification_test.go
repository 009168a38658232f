package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/pkg/apperr"
)

func TestNotificationService_ReadAndArchive(t *testing.T) {
	f := newFixture(t)
	f.place(t)
	f.place(t)

	page, err := f.notes.List(f.ctx, sellerA, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.Unread)
	first := page.Items[0]

	_, err = f.notes.MarkAsRead(f.ctx, first.ID, sellerB)
	assert.True(t, apperr.IsKind(err, apperr.KindAccessDenied))

	_, err = f.notes.MarkAsRead(f.ctx, "missing", sellerA)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	read, err := f.notes.MarkAsRead(f.ctx, first.ID, sellerA)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationRead, read.Status)
	assert.NotNil(t, read.ReadAt)

	page, err = f.notes.List(f.ctx, sellerA, model.NotificationUnread, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Unread)

	archived, err := f.notes.Archive(f.ctx, first.ID, sellerA)
	require.NoError(t, err)
	assert.Equal(t, model.NotificationArchived, archived.Status)

	n, err := f.notes.MarkAllAsRead(f.ctx, sellerA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	page, err = f.notes.List(f.ctx, sellerA, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Unread)

	_, err = f.notes.List(f.ctx, sellerA, "bogus", 1, 10)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestNotificationService_DispatchValidation(t *testing.T) {
	f := newFixture(t)
	err := f.notes.Dispatch(f.ctx, &model.SellerNotification{Type: model.NotificationNewOrder})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, *model.SellerNotification) error {
	return errors.New("mailer down")
}

func TestPlaceOrder_SurvivesNotificationFailure(t *testing.T) {
	f := newFixture(t)
	f.orders = NewOrderLifecycle(f.store, NewProductDirectory(f.store.Products), failingDispatcher{}, f.commissions)

	order := f.place(t)
	assert.Equal(t, model.OrderStatusSellerNotified, order.Status)

	hist, err := f.orders.GetOrderHistory(f.ctx, order.ID, sellerA)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.False(t, hist[1].NotificationSent)
}

type recordingDispatcher struct {
	mu  sync.Mutex
	got []*model.SellerNotification
}

func (r *recordingDispatcher) Dispatch(_ context.Context, n *model.SellerNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestAsyncDispatcher_DrainsOnStop(t *testing.T) {
	rec := &recordingDispatcher{}
	d := NewAsyncDispatcher(rec, 16)
	stop := d.Start(2)

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Dispatch(context.Background(), &model.SellerNotification{SellerID: sellerA, Type: model.NotificationStatusUpdate}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
	assert.Equal(t, 10, rec.count())

	err := d.Dispatch(context.Background(), &model.SellerNotification{SellerID: sellerA})
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

func TestAsyncDispatcher_DropsWhenFull(t *testing.T) {
	d := NewAsyncDispatcher(&recordingDispatcher{}, 1)

	require.NoError(t, d.Dispatch(context.Background(), &model.SellerNotification{SellerID: sellerA}))
	err := d.Dispatch(context.Background(), &model.SellerNotification{SellerID: sellerA})
	assert.ErrorIs(t, err, ErrDispatchQueueFull)
	assert.Equal(t, int64(1), d.Dropped())
	assert.Equal(t, 1, d.QueueLen())
}

func TestAsyncDispatcher_FeedsStore(t *testing.T) {
	f := newFixture(t)
	d := NewAsyncDispatcher(f.notes, 8)
	stop := d.Start(1)
	f.orders = NewOrderLifecycle(f.store, NewProductDirectory(f.store.Products), d, f.commissions)

	f.place(t)
	require.NoError(t, stop(context.Background()))

	page, err := f.notes.List(f.ctx, sellerB, "", 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}
