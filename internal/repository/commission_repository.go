package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/market-ledger/internal/model"
)

type CommissionRepository interface {
	// CreateIfAbsent inserts c unless a non-cancelled row for (order, seller) exists.
	CreateIfAbsent(ctx context.Context, c *model.Commission) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Commission, error)
	ListActiveByOrder(ctx context.Context, orderID string) ([]*model.Commission, error)
	ListBySeller(ctx context.Context, sellerID string, status model.CommissionStatus, page, pageSize int) ([]*model.Commission, int64, error)
	MarkPaid(ctx context.Context, id, payoutRef string, at time.Time) (bool, error)
	// CancelUnpaidByOrder cancels pending/calculated rows and returns the affected sellers.
	CancelUnpaidByOrder(ctx context.Context, orderID string, at time.Time) ([]string, error)
	Summary(ctx context.Context, sellerID string) (*model.CommissionSummary, error)

	GetSellerRate(ctx context.Context, sellerID string) (*model.SellerCommissionRate, error)
	SetSellerRate(ctx context.Context, sellerID string, rate decimal.Decimal) error
}

type commissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &commissionRepository{db: db}
}

func (r *commissionRepository) CreateIfAbsent(ctx context.Context, c *model.Commission) (bool, error) {
	// 幂等：并发重复计算命中部分唯一索引后静默忽略
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *commissionRepository) GetByID(ctx context.Context, id string) (*model.Commission, error) {
	var c model.Commission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commissionRepository) ListActiveByOrder(ctx context.Context, orderID string) ([]*model.Commission, error) {
	var rows []*model.Commission
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status <> ?", orderID, model.CommissionStatusCancelled).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *commissionRepository) ListBySeller(ctx context.Context, sellerID string, status model.CommissionStatus, page, pageSize int) ([]*model.Commission, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Commission{}).Where("seller_id = ?", sellerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := offsetLimit(page, pageSize)
	var rows []*model.Commission
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *commissionRepository) MarkPaid(ctx context.Context, id, payoutRef string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Commission{}).
		Where("id = ? AND status = ?", id, model.CommissionStatusCalculated).
		Updates(map[string]interface{}{
			"status":           model.CommissionStatusPaid,
			"paid_at":          at,
			"payout_reference": payoutRef,
			"updated_at":       at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *commissionRepository) CancelUnpaidByOrder(ctx context.Context, orderID string, at time.Time) ([]string, error) {
	unpaid := []model.CommissionStatus{model.CommissionStatusPending, model.CommissionStatusCalculated}
	var sellers []string
	if err := r.db.WithContext(ctx).
		Model(&model.Commission{}).
		Where("order_id = ? AND status IN ?", orderID, unpaid).
		Pluck("seller_id", &sellers).Error; err != nil {
		return nil, err
	}
	if len(sellers) == 0 {
		return nil, nil
	}
	err := r.db.WithContext(ctx).
		Model(&model.Commission{}).
		Where("order_id = ? AND status IN ?", orderID, unpaid).
		Updates(map[string]interface{}{
			"status":       model.CommissionStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		}).Error
	if err != nil {
		return nil, err
	}
	return sellers, nil
}

type commissionSummaryRow struct {
	TotalEarned     decimal.Decimal
	TotalPaid       decimal.Decimal
	Pending         decimal.Decimal
	CalculatedCount int64
	PaidCount       int64
}

func (r *commissionRepository) Summary(ctx context.Context, sellerID string) (*model.CommissionSummary, error) {
	var row commissionSummaryRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN amount ELSE 0 END), 0) AS total_earned,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS total_paid,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS pending,
			COUNT(CASE WHEN status = ? THEN 1 END) AS calculated_count,
			COUNT(CASE WHEN status = ? THEN 1 END) AS paid_count
		FROM commissions
		WHERE seller_id = ?`,
		model.CommissionStatusCalculated, model.CommissionStatusPaid,
		model.CommissionStatusPaid,
		model.CommissionStatusCalculated,
		model.CommissionStatusCalculated,
		model.CommissionStatusPaid,
		sellerID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &model.CommissionSummary{
		SellerID:        sellerID,
		TotalEarned:     row.TotalEarned.Round(2),
		TotalPaid:       row.TotalPaid.Round(2),
		Pending:         row.Pending.Round(2),
		CalculatedCount: row.CalculatedCount,
		PaidCount:       row.PaidCount,
	}, nil
}

func (r *commissionRepository) GetSellerRate(ctx context.Context, sellerID string) (*model.SellerCommissionRate, error) {
	var rate model.SellerCommissionRate
	if err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&rate).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *commissionRepository) SetSellerRate(ctx context.Context, sellerID string, rate decimal.Decimal) error {
	row := &model.SellerCommissionRate{SellerID: sellerID, Rate: rate, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seller_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "updated_at"}),
	}).Create(row).Error
}
