package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/market-ledger/internal/model"
)

// ReferralRepository 推荐码、推荐关系与推荐佣金
type ReferralRepository interface {
	// CreateCode returns false when the code string is already taken.
	CreateCode(ctx context.Context, c *model.ReferralCode) (bool, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	GetCodeByCode(ctx context.Context, code string) (*model.ReferralCode, error)
	ListCodesByUser(ctx context.Context, userID string) ([]*model.ReferralCode, error)
	// ConsumeCode increments usage_count only while the code is active and under its cap.
	ConsumeCode(ctx context.Context, codeID string, at time.Time) (bool, error)

	Create(ctx context.Context, r *model.Referral) error
	GetByID(ctx context.Context, id string) (*model.Referral, error)
	ExistsForReferred(ctx context.Context, referredID string, typ model.ReferralType) (bool, error)
	Transition(ctx context.Context, id string, from []model.ReferralStatus, to model.ReferralStatus, fields map[string]interface{}) (bool, error)
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
	ListByReferrer(ctx context.Context, referrerID string, status model.ReferralStatus, page, pageSize int) ([]*model.Referral, int64, error)
	ListActiveProductReferrals(ctx context.Context, sellerIDs, productIDs []string) ([]*model.Referral, error)
	FindActiveSellerAccountReferral(ctx context.Context, sellerID string) (*model.Referral, error)
	AddToTotal(ctx context.Context, referralID string, amount decimal.Decimal, at time.Time) error
	CountByStatus(ctx context.Context, referrerID string) (map[model.ReferralStatus]int64, error)
	CountActiveCodes(ctx context.Context, userID string) (int64, error)

	// CreateCommissionIfAbsent returns false when (referral, source) was already accrued.
	CreateCommissionIfAbsent(ctx context.Context, rc *model.ReferralCommission) (bool, error)
	GetCommission(ctx context.Context, id string) (*model.ReferralCommission, error)
	ListCommissionsByReferral(ctx context.Context, referralID string) ([]*model.ReferralCommission, error)
	MarkCommissionPaid(ctx context.Context, id, txRef string, at time.Time) (bool, error)
	ListEarnedByOrder(ctx context.Context, orderID string) ([]*model.ReferralCommission, error)
	// CancelCommission moves an earned row to cancelled; paid rows are left alone.
	CancelCommission(ctx context.Context, id string, at time.Time) (bool, error)
	CommissionTotals(ctx context.Context, referrerID string) (earned, paid, pending decimal.Decimal, err error)
}

type referralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) ReferralRepository { return &referralRepository{db: db} }

func (r *referralRepository) CreateCode(ctx context.Context, c *model.ReferralCode) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *referralRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&model.ReferralCode{}).Where("code = ?", code).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *referralRepository) GetCodeByCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	var c model.ReferralCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *referralRepository) ListCodesByUser(ctx context.Context, userID string) ([]*model.ReferralCode, error) {
	var rows []*model.ReferralCode
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *referralRepository) ConsumeCode(ctx context.Context, codeID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ReferralCode{}).
		Where("id = ? AND is_active = ?", codeID, true).
		Where("max_usage IS NULL OR usage_count < max_usage").
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *referralRepository) Create(ctx context.Context, ref *model.Referral) error {
	return r.db.WithContext(ctx).Create(ref).Error
}

func (r *referralRepository) GetByID(ctx context.Context, id string) (*model.Referral, error) {
	var ref model.Referral
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *referralRepository) ExistsForReferred(ctx context.Context, referredID string, typ model.ReferralType) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.Referral{}).
		Where("referred_id = ? AND type = ?", referredID, typ).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *referralRepository) Transition(ctx context.Context, id string, from []model.ReferralStatus, to model.ReferralStatus, fields map[string]interface{}) (bool, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = to
	res := r.db.WithContext(ctx).
		Model(&model.Referral{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *referralRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Referral{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.ReferralStatusPending, now).
		Updates(map[string]interface{}{"status": model.ReferralStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *referralRepository) ListByReferrer(ctx context.Context, referrerID string, status model.ReferralStatus, page, pageSize int) ([]*model.Referral, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Referral{}).Where("referrer_id = ?", referrerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := offsetLimit(page, pageSize)
	var rows []*model.Referral
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *referralRepository) ListActiveProductReferrals(ctx context.Context, sellerIDs, productIDs []string) ([]*model.Referral, error) {
	var rows []*model.Referral
	err := r.db.WithContext(ctx).
		Where("status = ? AND type = ?", model.ReferralStatusActive, model.ReferralTypeProduct).
		Where(r.db.Where("referrer_id IN ?", sellerIDs).Or("product_id IN ?", productIDs)).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *referralRepository) FindActiveSellerAccountReferral(ctx context.Context, sellerID string) (*model.Referral, error) {
	var ref model.Referral
	err := r.db.WithContext(ctx).
		Where("referred_id = ? AND type = ? AND status = ?", sellerID, model.ReferralTypeSellerAccount, model.ReferralStatusActive).
		Order("created_at ASC").
		First(&ref).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *referralRepository) AddToTotal(ctx context.Context, referralID string, amount decimal.Decimal, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Referral{}).
		Where("id = ?", referralID).
		Updates(map[string]interface{}{
			"total_commission": gorm.Expr("total_commission + ?", amount),
			"updated_at":       at,
		}).Error
}

func (r *referralRepository) CountByStatus(ctx context.Context, referrerID string) (map[model.ReferralStatus]int64, error) {
	var rows []struct {
		Status model.ReferralStatus
		Cnt    int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Referral{}).
		Select("status, COUNT(*) AS cnt").
		Where("referrer_id = ?", referrerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[model.ReferralStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Cnt
	}
	return out, nil
}

func (r *referralRepository) CountActiveCodes(ctx context.Context, userID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.ReferralCode{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&cnt).Error
	return cnt, err
}

func (r *referralRepository) CreateCommissionIfAbsent(ctx context.Context, rc *model.ReferralCommission) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rc)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *referralRepository) GetCommission(ctx context.Context, id string) (*model.ReferralCommission, error) {
	var rc model.ReferralCommission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rc).Error; err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *referralRepository) ListCommissionsByReferral(ctx context.Context, referralID string) ([]*model.ReferralCommission, error) {
	var rows []*model.ReferralCommission
	err := r.db.WithContext(ctx).Where("referral_id = ?", referralID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *referralRepository) MarkCommissionPaid(ctx context.Context, id, txRef string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ReferralCommission{}).
		Where("id = ? AND status = ?", id, model.ReferralCommissionEarned).
		Updates(map[string]interface{}{
			"status":                model.ReferralCommissionPaid,
			"paid_at":               at,
			"transaction_reference": txRef,
			"updated_at":            at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *referralRepository) ListEarnedByOrder(ctx context.Context, orderID string) ([]*model.ReferralCommission, error) {
	var rows []*model.ReferralCommission
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, model.ReferralCommissionEarned).
		Find(&rows).Error
	return rows, err
}

func (r *referralRepository) CancelCommission(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ReferralCommission{}).
		Where("id = ? AND status = ?", id, model.ReferralCommissionEarned).
		Updates(map[string]interface{}{
			"status":     model.ReferralCommissionCancelled,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *referralRepository) CommissionTotals(ctx context.Context, referrerID string) (earned, paid, pending decimal.Decimal, err error) {
	var row struct {
		Earned  decimal.Decimal
		Paid    decimal.Decimal
		Pending decimal.Decimal
	}
	err = r.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(CASE WHEN status IN (?, ?) THEN amount ELSE 0 END), 0) AS earned,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS paid,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS pending
		FROM referral_commissions
		WHERE referrer_id = ?`,
		model.ReferralCommissionEarned, model.ReferralCommissionPaid,
		model.ReferralCommissionPaid,
		model.ReferralCommissionEarned,
		referrerID,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	return row.Earned.Round(2), row.Paid.Round(2), row.Pending.Round(2), nil
}
