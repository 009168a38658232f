package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionStatusPending    CommissionStatus = "pending"
	CommissionStatusCalculated CommissionStatus = "calculated"
	CommissionStatusPaid       CommissionStatus = "paid"
	CommissionStatusCancelled  CommissionStatus = "cancelled"
)

func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionStatusPending, CommissionStatusCalculated, CommissionStatusPaid, CommissionStatusCancelled:
		return true
	}
	return false
}

// Commission is the platform's cut of one seller's share of a delivered order.
// At most one non-cancelled row exists per (order, seller).
type Commission struct {
	ID              string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID         string           `json:"order_id" gorm:"type:varchar(36);not null;index;uniqueIndex:ux_commission_order_seller,where:status <> 'cancelled'"`
	SellerID        string           `json:"seller_id" gorm:"type:varchar(36);not null;index;uniqueIndex:ux_commission_order_seller,where:status <> 'cancelled'"`
	OrderAmount     decimal.Decimal  `json:"order_amount" gorm:"type:decimal(20,2);not null"`
	Rate            decimal.Decimal  `json:"rate" gorm:"type:decimal(10,4);not null"`
	Amount          decimal.Decimal  `json:"amount" gorm:"type:decimal(20,2);not null"`
	Status          CommissionStatus `json:"status" gorm:"type:varchar(32);not null;index"`
	CalculatedAt    *time.Time       `json:"calculated_at,omitempty"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	CancelledAt     *time.Time       `json:"cancelled_at,omitempty"`
	PayoutReference string           `json:"payout_reference,omitempty" gorm:"type:varchar(128)"`
	CreatedAt       time.Time        `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (Commission) TableName() string { return "commissions" }

// SellerCommissionRate overrides the default platform rate for one seller.
type SellerCommissionRate struct {
	SellerID  string          `json:"seller_id" gorm:"primaryKey;type:varchar(36)"`
	Rate      decimal.Decimal `json:"rate" gorm:"type:decimal(10,4);not null"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (SellerCommissionRate) TableName() string { return "seller_commission_rates" }

// CommissionSummary aggregates a seller's platform commissions.
type CommissionSummary struct {
	SellerID        string          `json:"seller_id"`
	TotalEarned     decimal.Decimal `json:"total_earned"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	Pending         decimal.Decimal `json:"pending"`
	CalculatedCount int64           `json:"calculated_count"`
	PaidCount       int64           `json:"paid_count"`
}

// Percent returns base × rate / 100 rounded to cents.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}
