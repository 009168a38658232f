package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ReferralType string

const (
	ReferralTypeSellerAccount ReferralType = "seller_account"
	ReferralTypeProduct       ReferralType = "product"
)

func (t ReferralType) Valid() bool {
	return t == ReferralTypeSellerAccount || t == ReferralTypeProduct
}

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusActive    ReferralStatus = "active"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusExpired   ReferralStatus = "expired"
	ReferralStatusCancelled ReferralStatus = "cancelled"
)

func (s ReferralStatus) Valid() bool {
	switch s {
	case ReferralStatusPending, ReferralStatusActive, ReferralStatusCompleted, ReferralStatusExpired, ReferralStatusCancelled:
		return true
	}
	return false
}

type ReferralCommissionStatus string

const (
	ReferralCommissionPending   ReferralCommissionStatus = "pending"
	ReferralCommissionEarned    ReferralCommissionStatus = "earned"
	ReferralCommissionPaid      ReferralCommissionStatus = "paid"
	ReferralCommissionCancelled ReferralCommissionStatus = "cancelled"
)

// ReferralTarget is what a code or referral points at. The concrete type
// decides the program: SellerAccountTarget or ProductTarget.
type ReferralTarget interface {
	Type() ReferralType
	isReferralTarget()
}

// SellerAccountTarget refers a user into the seller program. SellerID is optional.
type SellerAccountTarget struct {
	SellerID string
}

func (SellerAccountTarget) Type() ReferralType { return ReferralTypeSellerAccount }
func (SellerAccountTarget) isReferralTarget()  {}

// ProductTarget refers buyers to one product.
type ProductTarget struct {
	ProductID string
}

func (ProductTarget) Type() ReferralType { return ReferralTypeProduct }
func (ProductTarget) isReferralTarget()  {}

// NewReferralTarget builds the variant for t from the request's optional ids.
func NewReferralTarget(t ReferralType, productID, sellerID string) (ReferralTarget, error) {
	switch t {
	case ReferralTypeSellerAccount:
		return SellerAccountTarget{SellerID: sellerID}, nil
	case ReferralTypeProduct:
		if productID == "" {
			return nil, fmt.Errorf("product referral requires a product id")
		}
		return ProductTarget{ProductID: productID}, nil
	}
	return nil, fmt.Errorf("unknown referral type %q", t)
}

// targetColumns flattens a variant into its storage columns.
func targetColumns(t ReferralTarget) (typ ReferralType, productID, sellerID *string) {
	switch v := t.(type) {
	case ProductTarget:
		return ReferralTypeProduct, &v.ProductID, nil
	case SellerAccountTarget:
		if v.SellerID == "" {
			return ReferralTypeSellerAccount, nil, nil
		}
		return ReferralTypeSellerAccount, nil, &v.SellerID
	}
	return "", nil, nil
}

func targetFromColumns(typ ReferralType, productID, sellerID *string) ReferralTarget {
	if typ == ReferralTypeProduct {
		return ProductTarget{ProductID: deref(productID)}
	}
	return SellerAccountTarget{SellerID: deref(sellerID)}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ReferralCode 推荐码，code 全局唯一
type ReferralCode struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code           string          `json:"code" gorm:"type:varchar(32);not null;uniqueIndex:ux_referral_code"`
	UserID         string          `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Type           ReferralType    `json:"type" gorm:"type:varchar(32);not null"`
	ProductID      *string         `json:"product_id,omitempty" gorm:"type:varchar(36);index"`
	SellerID       *string         `json:"seller_id,omitempty" gorm:"type:varchar(36)"`
	CommissionRate decimal.Decimal `json:"commission_rate" gorm:"type:decimal(10,4);not null"`
	IsActive       bool            `json:"is_active" gorm:"not null"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	MaxUsage       *int            `json:"max_usage,omitempty"`
	UsageCount     int             `json:"usage_count" gorm:"not null"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (ReferralCode) TableName() string { return "referral_codes" }

func (c *ReferralCode) Target() ReferralTarget {
	return targetFromColumns(c.Type, c.ProductID, c.SellerID)
}

func (c *ReferralCode) SetTarget(t ReferralTarget) {
	c.Type, c.ProductID, c.SellerID = targetColumns(t)
}

// UsableAt reports whether the code may still be redeemed at now.
func (c *ReferralCode) UsableAt(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	return c.MaxUsage == nil || c.UsageCount < *c.MaxUsage
}

// Referral 推荐关系，(referred_id, type) 唯一
type Referral struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ReferrerID      string          `json:"referrer_id" gorm:"type:varchar(36);not null;index"`
	ReferredID      string          `json:"referred_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_referral_referred_type"`
	Type            ReferralType    `json:"type" gorm:"type:varchar(32);not null;uniqueIndex:ux_referral_referred_type"`
	ReferralCodeID  string          `json:"referral_code_id" gorm:"type:varchar(36);not null;index"`
	ReferralCode    string          `json:"referral_code" gorm:"type:varchar(32);not null"`
	Status          ReferralStatus  `json:"status" gorm:"type:varchar(32);not null;index"`
	CommissionRate  decimal.Decimal `json:"commission_rate" gorm:"type:decimal(10,4);not null"`
	TotalCommission decimal.Decimal `json:"total_commission" gorm:"type:decimal(20,2);not null"`
	ProductID       *string         `json:"product_id,omitempty" gorm:"type:varchar(36);index"`
	SellerID        *string         `json:"seller_id,omitempty" gorm:"type:varchar(36)"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty" gorm:"index"`
	ActivatedAt     *time.Time      `json:"activated_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Referral) TableName() string { return "referrals" }

func (r *Referral) Target() ReferralTarget {
	return targetFromColumns(r.Type, r.ProductID, r.SellerID)
}

func (r *Referral) SetTarget(t ReferralTarget) {
	r.Type, r.ProductID, r.SellerID = targetColumns(t)
}

// CommissionSource is the event a referral commission accrues from.
// Key is unique per referral, which makes accrual idempotent.
type CommissionSource interface {
	Kind() string
	Key() string
	isCommissionSource()
}

// OrderSource is a delivered order containing the referred product or seller.
type OrderSource struct {
	OrderID string
}

func (OrderSource) Kind() string        { return "order" }
func (s OrderSource) Key() string       { return "order:" + s.OrderID }
func (OrderSource) isCommissionSource() {}

// RevenueSnapshotSource is a seller's cumulative revenue at approval time.
type RevenueSnapshotSource struct {
	SellerID string
}

func (RevenueSnapshotSource) Kind() string        { return "seller_revenue" }
func (RevenueSnapshotSource) Key() string         { return "seller_approval" }
func (RevenueSnapshotSource) isCommissionSource() {}

// ReferralCommission 推荐佣金，(referral_id, source_key) 唯一
type ReferralCommission struct {
	ID                   string                   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ReferralID           string                   `json:"referral_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_referral_commission_source"`
	ReferrerID           string                   `json:"referrer_id" gorm:"type:varchar(36);not null;index"`
	SourceKind           string                   `json:"source_kind" gorm:"type:varchar(32);not null"`
	SourceKey            string                   `json:"source_key" gorm:"type:varchar(80);not null;uniqueIndex:ux_referral_commission_source"`
	OrderID              *string                  `json:"order_id,omitempty" gorm:"type:varchar(36);index"`
	SellerID             *string                  `json:"seller_id,omitempty" gorm:"type:varchar(36)"`
	BaseAmount           decimal.Decimal          `json:"base_amount" gorm:"type:decimal(20,2);not null"`
	Rate                 decimal.Decimal          `json:"rate" gorm:"type:decimal(10,4);not null"`
	Amount               decimal.Decimal          `json:"amount" gorm:"type:decimal(20,2);not null"`
	Status               ReferralCommissionStatus `json:"status" gorm:"type:varchar(32);not null;index"`
	EarnedAt             *time.Time               `json:"earned_at,omitempty"`
	PaidAt               *time.Time               `json:"paid_at,omitempty"`
	TransactionReference string                   `json:"transaction_reference,omitempty" gorm:"type:varchar(128)"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
}

func (ReferralCommission) TableName() string { return "referral_commissions" }

// SetSource fills the source columns from the variant.
func (rc *ReferralCommission) SetSource(s CommissionSource) {
	rc.SourceKind = s.Kind()
	rc.SourceKey = s.Key()
	switch v := s.(type) {
	case OrderSource:
		id := v.OrderID
		rc.OrderID = &id
	case RevenueSnapshotSource:
		id := v.SellerID
		rc.SellerID = &id
	}
}

// ReferralStats aggregates a referrer's program activity.
type ReferralStats struct {
	UserID         string                   `json:"user_id"`
	TotalReferrals int64                    `json:"total_referrals"`
	ByStatus       map[ReferralStatus]int64 `json:"by_status"`
	TotalEarned    decimal.Decimal          `json:"total_earned"`
	TotalPaid      decimal.Decimal          `json:"total_paid"`
	PendingPayout  decimal.Decimal          `json:"pending_payout"`
	ActiveCodes    int64                    `json:"active_codes"`
}
