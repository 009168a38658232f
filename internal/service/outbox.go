package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/internal/events"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/pkg/logger"
)

// writeEvent 在调用方事务内写入一条 outbox 事件
func writeEvent(ctx context.Context, tx *repository.Store, eventType, aggregateID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	return tx.Outbox.Add(ctx, &model.OutboxEvent{
		ID:          uuid.New().String(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     body,
		Status:      model.OutboxStatusPending,
		CreatedAt:   time.Now(),
	})
}

type RelayOptions struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	// StaleAfter releases events left in processing by a crashed relay.
	StaleAfter time.Duration
}

// OutboxRelay 轮询 outbox，认领一批事件并交给 Publisher 投递
type OutboxRelay struct {
	store *repository.Store
	pub   events.Publisher
	opts  RelayOptions
}

func NewOutboxRelay(store *repository.Store, pub events.Publisher, opts RelayOptions) *OutboxRelay {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * time.Minute
	}
	return &OutboxRelay{store: store, pub: pub, opts: opts}
}

// Start 启动若干 worker 轮询处理 outbox；返回停止函数。
func (r *OutboxRelay) Start() func(context.Context) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(stop)
		}()
	}
	return func(ctx context.Context) error {
		close(stop)
		done := make(chan struct{})
		go func() {
			wg.Wait()
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

func (r *OutboxRelay) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := r.ProcessOnce(context.Background()); err != nil {
				logger.Warn("outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce claims one batch and publishes it, returning how many events
// were delivered.
func (r *OutboxRelay) ProcessOnce(ctx context.Context) (int, error) {
	if n, err := r.store.Outbox.ReleaseStale(ctx, time.Now().Add(-r.opts.StaleAfter)); err != nil {
		return 0, err
	} else if n > 0 {
		logger.Warn("outbox released stale claims", zap.Int64("count", n))
	}

	batch, err := r.store.Outbox.Claim(ctx, r.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, ev := range batch {
		pubErr := r.pub.Publish(ctx, events.Event{
			ID:          ev.ID,
			Type:        ev.EventType,
			AggregateID: ev.AggregateID,
			Payload:     ev.Payload,
			OccurredAt:  ev.CreatedAt,
		})
		if pubErr == nil {
			if err := r.store.Outbox.MarkDone(ctx, ev.ID, time.Now()); err != nil {
				return delivered, err
			}
			delivered++
			continue
		}

		attempts := ev.Attempts + 1
		failed := attempts >= r.opts.MaxAttempts
		logger.Warn("outbox publish failed",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.EventType),
			zap.Int("attempts", attempts),
			zap.Bool("gave_up", failed),
			zap.Error(pubErr))
		if err := r.store.Outbox.MarkRetry(ctx, ev.ID, attempts, pubErr.Error(), failed); err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}
