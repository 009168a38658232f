package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/pkg/logger"
)

var (
	ErrDispatchQueueFull = errors.New("notification queue full")
	ErrDispatcherStopped = errors.New("notification dispatcher stopped")
)

// AsyncDispatcher 通知异步落库：有界队列 + worker，队列满时丢弃
type AsyncDispatcher struct {
	next    NotificationDispatcher
	ch      chan *model.SellerNotification
	stopCh  chan struct{}
	stopped atomic.Bool
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Int64
	timeout time.Duration
}

func NewAsyncDispatcher(next NotificationDispatcher, queueSize int) *AsyncDispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &AsyncDispatcher{
		next:    next,
		ch:      make(chan *model.SellerNotification, queueSize),
		stopCh:  make(chan struct{}),
		timeout: 5 * time.Second,
	}
}

// Start launches workers and returns a stop function that drains the queue
// until ctx is done.
func (d *AsyncDispatcher) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.loop()
	}
	return func(ctx context.Context) error {
		d.once.Do(func() {
			d.stopped.Store(true)
			close(d.stopCh)
		})
		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *AsyncDispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.stopCh:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *AsyncDispatcher) deliver(n *model.SellerNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.next.Dispatch(ctx, n); err != nil {
		logger.Warn("notification persist failed",
			zap.String("seller_id", n.SellerID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
	}
}

// Dispatch enqueues n without waiting on the store.
func (d *AsyncDispatcher) Dispatch(_ context.Context, n *model.SellerNotification) error {
	if d.stopped.Load() {
		return ErrDispatcherStopped
	}
	select {
	case d.ch <- n:
		return nil
	default:
		d.dropped.Add(1)
		return ErrDispatchQueueFull
	}
}

// Dropped returns how many notifications were discarded on a full queue.
func (d *AsyncDispatcher) Dropped() int64 { return d.dropped.Load() }

// QueueLen 返回当前队列长度（采样值）。
func (d *AsyncDispatcher) QueueLen() int { return len(d.ch) }
