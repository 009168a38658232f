package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/pkg/apperr"
)

// NotificationDispatcher records a seller notification. Callers log and
// swallow its errors; a notification never fails the operation that caused it.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n *model.SellerNotification) error
}

// NotificationService 卖家通知
type NotificationService interface {
	NotificationDispatcher
	List(ctx context.Context, sellerID string, status model.NotificationStatus, page, pageSize int) (*NotificationPage, error)
	MarkAsRead(ctx context.Context, notificationID, sellerID string) (*model.SellerNotification, error)
	MarkAllAsRead(ctx context.Context, sellerID string) (int64, error)
	Archive(ctx context.Context, notificationID, sellerID string) (*model.SellerNotification, error)
}

type NotificationPage struct {
	Page[*model.SellerNotification]
	Unread int64 `json:"unread"`
}

type notificationService struct {
	store *repository.Store
	now   func() time.Time
}

func NewNotificationService(store *repository.Store) NotificationService {
	return &notificationService{store: store, now: time.Now}
}

func (s *notificationService) Dispatch(ctx context.Context, n *model.SellerNotification) error {
	if n == nil || n.SellerID == "" || n.Type == "" {
		return apperr.Validation("invalid_notification", "notification requires seller and type")
	}
	now := s.now()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.Status = model.NotificationUnread
	n.CreatedAt = now
	n.UpdatedAt = now
	if err := s.store.Notifications.Create(ctx, n); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, sellerID string, status model.NotificationStatus, page, pageSize int) (*NotificationPage, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("invalid_status", "unknown notification status %q", status)
	}
	page, pageSize = normalizePage(page, pageSize)
	rows, total, err := s.store.Notifications.ListBySeller(ctx, sellerID, status, page, pageSize)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	unread, err := s.store.Notifications.CountUnread(ctx, sellerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &NotificationPage{
		Page:   Page[*model.SellerNotification]{Items: rows, Total: total, Page: page, PageSize: pageSize},
		Unread: unread,
	}, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, notificationID, sellerID string) (*model.SellerNotification, error) {
	return s.setStatus(ctx, notificationID, sellerID, model.NotificationRead)
}

func (s *notificationService) Archive(ctx context.Context, notificationID, sellerID string) (*model.SellerNotification, error) {
	return s.setStatus(ctx, notificationID, sellerID, model.NotificationArchived)
}

func (s *notificationService) setStatus(ctx context.Context, notificationID, sellerID string, status model.NotificationStatus) (*model.SellerNotification, error) {
	n, err := s.store.Notifications.GetByID(ctx, notificationID)
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("notification_not_found", "notification not found"))
	}
	if n.SellerID != sellerID {
		return nil, apperr.AccessDenied("notification_forbidden", "notification belongs to another seller")
	}
	if n.Status == status {
		return n, nil
	}
	now := s.now()
	if err := s.store.Notifications.UpdateStatus(ctx, n.ID, status, now); err != nil {
		return nil, apperr.Internal(err)
	}
	n.Status = status
	n.UpdatedAt = now
	if status == model.NotificationRead {
		n.ReadAt = &now
	}
	return n, nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, sellerID string) (int64, error) {
	n, err := s.store.Notifications.MarkAllRead(ctx, sellerID, s.now())
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

func newOrderNotification(order *model.Order, sellerID string) *model.SellerNotification {
	id := order.ID
	return &model.SellerNotification{
		SellerID: sellerID,
		OrderID:  &id,
		Type:     model.NotificationNewOrder,
		Title:    "New order received",
		Message:  "Order " + order.ID + " contains your products and is waiting for acceptance.",
		Metadata: jsonMeta(map[string]interface{}{"order_id": order.ID, "items": countItems(order, sellerID)}),
	}
}

func orderAcceptedNotification(order *model.Order, sellerID string) *model.SellerNotification {
	id := order.ID
	return &model.SellerNotification{
		SellerID: sellerID,
		OrderID:  &id,
		Type:     model.NotificationOrderAccepted,
		Title:    "Order accepted",
		Message:  "You accepted order " + order.ID + ".",
		Metadata: jsonMeta(map[string]interface{}{"order_id": order.ID, "estimated_processing_time": order.EstimatedProcessingTime}),
	}
}

func statusUpdateNotification(order *model.Order, sellerID string, from, to model.OrderStatus) *model.SellerNotification {
	id := order.ID
	return &model.SellerNotification{
		SellerID: sellerID,
		OrderID:  &id,
		Type:     model.NotificationStatusUpdate,
		Title:    "Order status updated",
		Message:  "Order " + order.ID + " moved from " + string(from) + " to " + string(to) + ".",
		Metadata: jsonMeta(map[string]interface{}{"order_id": order.ID, "from": from, "to": to, "tracking_number": order.TrackingNumber}),
	}
}

func commissionEarnedNotification(c *model.Commission) *model.SellerNotification {
	id := c.OrderID
	return &model.SellerNotification{
		SellerID: c.SellerID,
		OrderID:  &id,
		Type:     model.NotificationCommissionEarned,
		Title:    "Commission calculated",
		Message:  "Platform commission of " + c.Amount.StringFixed(2) + " was calculated for order " + c.OrderID + ".",
		Metadata: jsonMeta(map[string]interface{}{
			"commission_id": c.ID,
			"order_amount":  c.OrderAmount.StringFixed(2),
			"rate":          c.Rate.String(),
			"amount":        c.Amount.StringFixed(2),
		}),
	}
}

func countItems(order *model.Order, sellerID string) int {
	n := 0
	for _, it := range order.Items {
		if it.SellerID == sellerID {
			n += it.Quantity
		}
	}
	return n
}
