package model

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationNewOrder         NotificationType = "new_order"
	NotificationOrderAccepted    NotificationType = "order_accepted"
	NotificationStatusUpdate     NotificationType = "status_update"
	NotificationCommissionEarned NotificationType = "commission_earned"
)

type NotificationStatus string

const (
	NotificationUnread   NotificationStatus = "unread"
	NotificationRead     NotificationStatus = "read"
	NotificationArchived NotificationStatus = "archived"
)

func (s NotificationStatus) Valid() bool {
	return s == NotificationUnread || s == NotificationRead || s == NotificationArchived
}

// SellerNotification is informational only; nothing depends on it existing.
type SellerNotification struct {
	ID        string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SellerID  string             `json:"seller_id" gorm:"type:varchar(36);not null;index:idx_notification_seller_created"`
	OrderID   *string            `json:"order_id,omitempty" gorm:"type:varchar(36);index"`
	Type      NotificationType   `json:"type" gorm:"type:varchar(32);not null"`
	Title     string             `json:"title" gorm:"type:varchar(255);not null"`
	Message   string             `json:"message" gorm:"type:text;not null"`
	Status    NotificationStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	Metadata  datatypes.JSON     `json:"metadata,omitempty"`
	ReadAt    *time.Time         `json:"read_at,omitempty"`
	CreatedAt time.Time          `json:"created_at" gorm:"index:idx_notification_seller_created"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (SellerNotification) TableName() string { return "seller_notifications" }
