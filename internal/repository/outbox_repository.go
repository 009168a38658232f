package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/market-ledger/internal/model"
)

type OutboxRepository interface {
	Add(ctx context.Context, e *model.OutboxEvent) error
	// Claim moves up to limit pending events to processing and returns them.
	Claim(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkDone(ctx context.Context, id string, at time.Time) error
	// MarkRetry records a failed attempt; the event returns to pending unless failed is set.
	MarkRetry(ctx context.Context, id string, attempts int, lastErr string, failed bool) error
	// ReleaseStale puts events stuck in processing since before cutoff back to pending.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepository{db: db} }

func (r *outboxRepository) Add(ctx context.Context, e *model.OutboxEvent) error {
	if e.Status == "" {
		e.Status = model.OutboxStatusPending
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *outboxRepository) Claim(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if limit <= 0 {
		limit = 128
	}
	// 用 claim_token 认领一批，避免依赖 FOR UPDATE SKIP LOCKED（sqlite 不支持）
	token := uuid.New().String()
	now := time.Now()
	candidates := r.db.Model(&model.OutboxEvent{}).
		Select("id").
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at").
		Limit(limit)
	res := r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id IN (?) AND status = ?", candidates, model.OutboxStatusPending).
		Updates(map[string]interface{}{"status": model.OutboxStatusProcessing, "claim_token": token, "claimed_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	var batch []*model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("claim_token = ? AND status = ?", token, model.OutboxStatusProcessing).
		Order("created_at").
		Find(&batch).Error
	return batch, err
}

func (r *outboxRepository) MarkDone(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.OutboxStatusDone, "processed_at": at, "last_error": ""}).Error
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id string, attempts int, lastErr string, failed bool) error {
	status := model.OutboxStatusPending
	if failed {
		status = model.OutboxStatusFailed
	}
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "attempts": attempts, "last_error": lastErr, "claim_token": ""}).Error
}

func (r *outboxRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("status = ? AND claimed_at < ?", model.OutboxStatusProcessing, cutoff).
		Updates(map[string]interface{}{"status": model.OutboxStatusPending, "claim_token": ""})
	return res.RowsAffected, res.Error
}

func (r *outboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("status = ?", status).Count(&cnt).Error
	return cnt, err
}
