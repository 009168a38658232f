package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventOrderStatusChanged   = "order.status_changed"
	EventOrderDelivered       = "order.delivered"
	EventCommissionCalculated = "commission.calculated"
)

const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusDone       = "done"
	OutboxStatusFailed     = "failed"
)

// OutboxEvent 事务内写入的待发布事件，由 relay 异步投递
type OutboxEvent struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)"`
	AggregateID string         `gorm:"type:varchar(36);not null;index"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	Payload     datatypes.JSON `gorm:"not null"`
	Status      string         `gorm:"type:varchar(16);index:idx_outbox_status_created"`
	ClaimToken  string         `gorm:"type:varchar(36);index"`
	ClaimedAt   *time.Time
	Attempts    int            `gorm:"not null"`
	LastError   string         `gorm:"type:text"`
	CreatedAt   time.Time      `gorm:"index:idx_outbox_status_created"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "outbox_events" }

// All lists every table the ledger owns, in migration order.
func All() []interface{} {
	return []interface{}{
		&Product{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&Commission{},
		&SellerCommissionRate{},
		&SellerNotification{},
		&ReferralCode{},
		&Referral{},
		&ReferralCommission{},
		&OutboxEvent{},
	}
}
