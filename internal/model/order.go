package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderStatus is persisted verbatim in orders.status and status history rows.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusSellerNotified OrderStatus = "seller_notified"
	OrderStatusSellerAccepted OrderStatus = "seller_accepted"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
	OrderStatusReturned       OrderStatus = "returned"
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:        {},
	OrderStatusSellerNotified: {},
	OrderStatusSellerAccepted: {},
	OrderStatusConfirmed:      {},
	OrderStatusProcessing:     {},
	OrderStatusShipped:        {},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
	OrderStatusRefunded:       {},
	OrderStatusReturned:       {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// IsTerminal reports statuses with no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded || s == OrderStatusReturned
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// Order is created by checkout and mutated only by the lifecycle manager.
type Order struct {
	ID                      string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BuyerID                 *string         `json:"buyer_id,omitempty" gorm:"type:varchar(36);index"`
	GuestEmail              string          `json:"guest_email,omitempty" gorm:"type:varchar(255)"`
	Subtotal                decimal.Decimal `json:"subtotal" gorm:"type:decimal(20,2);not null"`
	Tax                     decimal.Decimal `json:"tax" gorm:"type:decimal(20,2);not null"`
	ShippingCost            decimal.Decimal `json:"shipping_cost" gorm:"type:decimal(20,2);not null"`
	Discount                decimal.Decimal `json:"discount" gorm:"type:decimal(20,2);not null"`
	Total                   decimal.Decimal `json:"total" gorm:"type:decimal(20,2);not null"`
	Status                  OrderStatus     `json:"status" gorm:"type:varchar(32);not null;index"`
	PaymentStatus           PaymentStatus   `json:"payment_status" gorm:"type:varchar(32);not null"`
	PaymentMethod           string          `json:"payment_method" gorm:"type:varchar(64)"`
	ShippingAddress         datatypes.JSON  `json:"shipping_address,omitempty"`
	BillingAddress          datatypes.JSON  `json:"billing_address,omitempty"`
	TrackingNumber          string          `json:"tracking_number,omitempty" gorm:"type:varchar(128)"`
	EstimatedProcessingTime string          `json:"estimated_processing_time,omitempty" gorm:"type:varchar(64)"`
	EstimatedDeliveryDate   *time.Time      `json:"estimated_delivery_date,omitempty"`
	AcceptedAt              *time.Time      `json:"accepted_at,omitempty"`
	ShippedAt               *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt             *time.Time      `json:"delivered_at,omitempty" gorm:"index"`
	CancelledAt             *time.Time      `json:"cancelled_at,omitempty"`
	ReturnedAt              *time.Time      `json:"returned_at,omitempty"`
	// Version increments on every status write; transitions compare-and-swap on it.
	Version   int64     `json:"version" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	Items   []OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusHistory `json:"history,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string { return "orders" }

// SellerIDs returns the distinct sellers of the order's items in first-seen order.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	out := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.SellerID]; ok {
			continue
		}
		seen[it.SellerID] = struct{}{}
		out = append(out, it.SellerID)
	}
	return out
}

// HasSeller reports whether any item belongs to sellerID.
func (o *Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// OrderItem is a purchase-time snapshot; it is never updated after placement.
type OrderItem struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string          `json:"order_id" gorm:"type:varchar(36);not null;index"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36);not null;index"`
	SellerID    string          `json:"seller_id" gorm:"type:varchar(36);not null;index"`
	ProductName string          `json:"product_name" gorm:"type:varchar(255);not null"`
	ProductSlug string          `json:"product_slug" gorm:"type:varchar(255)"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(20,2);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	Variant     datatypes.JSON  `json:"variant,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

// LineTotal is quantity × unit price.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// OrderStatusHistory is one append-only audit row per transition.
// Sequence equals the order version produced by the transition.
type OrderStatusHistory struct {
	ID               string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID          string      `json:"order_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_history_order_seq"`
	Sequence         int64       `json:"sequence" gorm:"not null;uniqueIndex:ux_history_order_seq"`
	PreviousStatus   OrderStatus `json:"previous_status" gorm:"type:varchar(32)"`
	NewStatus        OrderStatus `json:"new_status" gorm:"type:varchar(32);not null"`
	ActorID          string      `json:"actor_id" gorm:"type:varchar(36);not null"`
	Note             string      `json:"note,omitempty" gorm:"type:text"`
	NotificationSent bool        `json:"notification_sent" gorm:"not null"`
	CreatedAt        time.Time   `json:"created_at" gorm:"index"`
}

func (OrderStatusHistory) TableName() string { return "order_status_history" }

// Product is the catalog's row; the ledger only reads id -> seller ownership.
type Product struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SellerID  string    `json:"seller_id" gorm:"type:varchar(36);not null;index"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Slug      string    `json:"slug" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string { return "products" }
