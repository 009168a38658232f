package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/market-ledger/internal/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.SellerNotification) error
	GetByID(ctx context.Context, id string) (*model.SellerNotification, error)
	ListBySeller(ctx context.Context, sellerID string, status model.NotificationStatus, page, pageSize int) ([]*model.SellerNotification, int64, error)
	CountUnread(ctx context.Context, sellerID string) (int64, error)
	UpdateStatus(ctx context.Context, id string, status model.NotificationStatus, at time.Time) error
	MarkAllRead(ctx context.Context, sellerID string, at time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.SellerNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*model.SellerNotification, error) {
	var n model.SellerNotification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListBySeller(ctx context.Context, sellerID string, status model.NotificationStatus, page, pageSize int) ([]*model.SellerNotification, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.SellerNotification{}).Where("seller_id = ?", sellerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := offsetLimit(page, pageSize)
	var rows []*model.SellerNotification
	err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, sellerID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.SellerNotification{}).
		Where("seller_id = ? AND status = ?", sellerID, model.NotificationUnread).
		Count(&cnt).Error
	return cnt, err
}

func (r *notificationRepository) UpdateStatus(ctx context.Context, id string, status model.NotificationStatus, at time.Time) error {
	fields := map[string]interface{}{"status": status, "updated_at": at}
	if status == model.NotificationRead {
		fields["read_at"] = at
	}
	return r.db.WithContext(ctx).Model(&model.SellerNotification{}).Where("id = ?", id).Updates(fields).Error
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, sellerID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.SellerNotification{}).
		Where("seller_id = ? AND status = ?", sellerID, model.NotificationUnread).
		Updates(map[string]interface{}{"status": model.NotificationRead, "read_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}
