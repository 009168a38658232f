package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/d60-Lab/market-ledger/internal/events"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/pkg/apperr"
	"github.com/d60-Lab/market-ledger/pkg/logger"
)

// SystemActor is recorded on history rows written by the lifecycle itself.
const SystemActor = "system"

type PlaceOrderItem struct {
	ProductID   string
	ProductName string
	ProductSlug string
	UnitPrice   decimal.Decimal
	Quantity    int
	Variant     json.RawMessage
}

type PlaceOrderInput struct {
	OrderID         string
	BuyerID         string
	GuestEmail      string
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	ShippingCost    decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	PaymentStatus   model.PaymentStatus
	PaymentMethod   string
	ShippingAddress json.RawMessage
	BillingAddress  json.RawMessage
	Items           []PlaceOrderItem
}

type AcceptOrderInput struct {
	OrderID                 string
	SellerID                string
	Notes                   string
	EstimatedProcessingTime string
}

type UpdateStatusInput struct {
	OrderID               string
	SellerID              string
	Status                model.OrderStatus
	Notes                 string
	TrackingNumber        string
	EstimatedDeliveryDate *time.Time
}

// OrderLifecycle 订单状态机
type OrderLifecycle interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error)
	AcceptOrder(ctx context.Context, in AcceptOrderInput) (*model.Order, error)
	UpdateStatus(ctx context.Context, in UpdateStatusInput) (*model.Order, error)
	ListSellerOrders(ctx context.Context, sellerID string, status model.OrderStatus, page, pageSize int) (*Page[*model.Order], error)
	GetOrderHistory(ctx context.Context, orderID, sellerID string) ([]*model.OrderStatusHistory, error)
}

// CommissionTrigger is the slice of the commission engine the lifecycle drives.
type CommissionTrigger interface {
	CalculateAndCreateCommission(ctx context.Context, orderID string) ([]*model.Commission, error)
	CancelOrderCommissions(ctx context.Context, orderID string) (int, error)
}

type orderLifecycle struct {
	store       *repository.Store
	products    ProductDirectory
	notifier    NotificationDispatcher
	commissions CommissionTrigger
	now         func() time.Time
}

func NewOrderLifecycle(store *repository.Store, products ProductDirectory, notifier NotificationDispatcher, commissions CommissionTrigger) OrderLifecycle {
	return &orderLifecycle{
		store:       store,
		products:    products,
		notifier:    notifier,
		commissions: commissions,
		now:         time.Now,
	}
}

func (s *orderLifecycle) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error) {
	if err := validatePlaceOrder(in); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.Lookup(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	order := &model.Order{
		ID:              in.OrderID,
		GuestEmail:      strings.TrimSpace(in.GuestEmail),
		Subtotal:        in.Subtotal,
		Tax:             in.Tax,
		ShippingCost:    in.ShippingCost,
		Discount:        in.Discount,
		Total:           in.Total,
		Status:          model.OrderStatusPending,
		PaymentStatus:   in.PaymentStatus,
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: datatypes.JSON(in.ShippingAddress),
		BillingAddress:  datatypes.JSON(in.BillingAddress),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if in.BuyerID != "" {
		buyer := in.BuyerID
		order.BuyerID = &buyer
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = model.PaymentStatusPending
	}
	for _, it := range in.Items {
		p, ok := products[it.ProductID]
		if !ok || p.SellerID == "" {
			return nil, apperr.Validation("unknown_product", "product %s is not in the catalog", it.ProductID)
		}
		name, slug := it.ProductName, it.ProductSlug
		if name == "" {
			name = p.Name
		}
		if slug == "" {
			slug = p.Slug
		}
		order.Items = append(order.Items, model.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			ProductID:   it.ProductID,
			SellerID:    p.SellerID,
			ProductName: name,
			ProductSlug: slug,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Variant:     datatypes.JSON(it.Variant),
			CreatedAt:   now,
		})
	}

	var notified *model.OrderStatusHistory
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Orders.Create(ctx, order); err != nil {
			if repository.IsDuplicateKey(err) {
				return apperr.Duplicate("order_exists", "order %s already exists", order.ID)
			}
			return err
		}
		if err := tx.Orders.AppendHistory(ctx, &model.OrderStatusHistory{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			Sequence:  order.Version,
			NewStatus: model.OrderStatusPending,
			ActorID:   SystemActor,
			Note:      "order placed",
			CreatedAt: now,
		}); err != nil {
			return err
		}
		h, err := s.applyTransition(ctx, tx, order, model.OrderStatusSellerNotified, SystemActor, "sellers notified", nil)
		notified = h
		return err
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	sent := true
	for _, sellerID := range order.SellerIDs() {
		if !s.notify(ctx, newOrderNotification(order, sellerID)) {
			sent = false
		}
	}
	if sent {
		s.markNotified(ctx, notified)
	}
	return s.reload(ctx, order.ID)
}

func validatePlaceOrder(in PlaceOrderInput) error {
	if in.BuyerID == "" && strings.TrimSpace(in.GuestEmail) == "" {
		return apperr.Validation("buyer_required", "either buyer id or guest email is required")
	}
	if len(in.Items) == 0 {
		return apperr.Validation("items_required", "order must contain at least one item")
	}
	if in.PaymentStatus != "" && !in.PaymentStatus.Valid() {
		return apperr.Validation("invalid_payment_status", "unknown payment status %q", in.PaymentStatus)
	}
	for i, it := range in.Items {
		if it.ProductID == "" {
			return apperr.Validation("invalid_item", "item %d has no product", i)
		}
		if it.Quantity <= 0 {
			return apperr.Validation("invalid_item", "item %d quantity must be positive", i)
		}
		if it.UnitPrice.IsNegative() {
			return apperr.Validation("invalid_item", "item %d unit price must not be negative", i)
		}
	}
	for _, amt := range []decimal.Decimal{in.Subtotal, in.Tax, in.ShippingCost, in.Discount, in.Total} {
		if amt.IsNegative() {
			return apperr.Validation("invalid_amount", "order amounts must not be negative")
		}
	}
	return nil
}

func (s *orderLifecycle) AcceptOrder(ctx context.Context, in AcceptOrderInput) (*model.Order, error) {
	var (
		order *model.Order
		hist  *model.OrderStatusHistory
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		order, err = s.loadOwned(ctx, tx, in.OrderID, in.SellerID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusSellerNotified {
			return apperr.InvalidState("order_not_acceptable", "order is %s, only seller_notified orders can be accepted", order.Status)
		}
		now := s.now()
		fields := map[string]interface{}{"accepted_at": now}
		if in.EstimatedProcessingTime != "" {
			fields["estimated_processing_time"] = in.EstimatedProcessingTime
			order.EstimatedProcessingTime = in.EstimatedProcessingTime
		}
		hist, err = s.applyTransition(ctx, tx, order, model.OrderStatusSellerAccepted, in.SellerID, in.Notes, fields)
		return err
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	if s.notify(ctx, orderAcceptedNotification(order, in.SellerID)) {
		s.markNotified(ctx, hist)
	}
	return s.reload(ctx, order.ID)
}

func (s *orderLifecycle) UpdateStatus(ctx context.Context, in UpdateStatusInput) (*model.Order, error) {
	if !in.Status.Valid() {
		return nil, apperr.Validation("invalid_status", "unknown order status %q", in.Status)
	}

	var (
		order *model.Order
		from  model.OrderStatus
		hist  *model.OrderStatusHistory
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		order, err = s.loadOwned(ctx, tx, in.OrderID, in.SellerID)
		if err != nil {
			return err
		}
		from = order.Status
		if !model.CanTransition(from, in.Status) {
			return apperr.InvalidTransition("invalid_transition", "cannot move order from %s to %s", from, in.Status)
		}
		fields := statusTimestamps(in.Status, s.now())
		if in.TrackingNumber != "" {
			fields["tracking_number"] = in.TrackingNumber
			order.TrackingNumber = in.TrackingNumber
		}
		if in.EstimatedDeliveryDate != nil {
			fields["estimated_delivery_date"] = *in.EstimatedDeliveryDate
		}
		hist, err = s.applyTransition(ctx, tx, order, in.Status, in.SellerID, in.Notes, fields)
		return err
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	sent := true
	for _, sellerID := range order.SellerIDs() {
		if !s.notify(ctx, statusUpdateNotification(order, sellerID, from, in.Status)) {
			sent = false
		}
	}
	if sent {
		s.markNotified(ctx, hist)
	}

	if s.commissions == nil {
		return s.reload(ctx, order.ID)
	}
	// 佣金是次要记账动作：失败只记录日志，状态变更已经提交
	switch in.Status {
	case model.OrderStatusDelivered:
		if _, err := s.commissions.CalculateAndCreateCommission(ctx, order.ID); err != nil {
			logger.Error("commission calculation after delivery failed",
				zap.String("order_id", order.ID), zap.Error(err))
		}
	case model.OrderStatusReturned:
		if _, err := s.commissions.CancelOrderCommissions(ctx, order.ID); err != nil {
			logger.Error("commission cancellation after return failed",
				zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	return s.reload(ctx, order.ID)
}

func statusTimestamps(to model.OrderStatus, now time.Time) map[string]interface{} {
	fields := map[string]interface{}{}
	switch to {
	case model.OrderStatusSellerAccepted:
		fields["accepted_at"] = now
	case model.OrderStatusShipped:
		fields["shipped_at"] = now
	case model.OrderStatusDelivered:
		fields["delivered_at"] = now
	case model.OrderStatusCancelled:
		fields["cancelled_at"] = now
	case model.OrderStatusReturned:
		fields["returned_at"] = now
	}
	return fields
}

func (s *orderLifecycle) ListSellerOrders(ctx context.Context, sellerID string, status model.OrderStatus, page, pageSize int) (*Page[*model.Order], error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("invalid_status", "unknown order status %q", status)
	}
	page, pageSize = normalizePage(page, pageSize)
	orders, total, err := s.store.Orders.ListBySeller(ctx, sellerID, status, page, pageSize)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Page[*model.Order]{Items: orders, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *orderLifecycle) GetOrderHistory(ctx context.Context, orderID, sellerID string) ([]*model.OrderStatusHistory, error) {
	if _, err := s.loadOwned(ctx, s.store, orderID, sellerID); err != nil {
		return nil, storeErr(err, nil)
	}
	rows, err := s.store.Orders.ListHistory(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rows, nil
}

// loadOwned loads the order and checks the seller owns at least one item.
func (s *orderLifecycle) loadOwned(ctx context.Context, store *repository.Store, orderID, sellerID string) (*model.Order, error) {
	order, err := store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("order_not_found", "order %s not found", orderID))
	}
	if !order.HasSeller(sellerID) {
		return nil, apperr.AccessDenied("order_not_owned", "order has no items from this seller")
	}
	return order, nil
}

// applyTransition writes the status change, its history row and outbox events
// inside tx. The write only lands if the order is still at the status and
// version it was read with.
func (s *orderLifecycle) applyTransition(ctx context.Context, tx *repository.Store, order *model.Order, to model.OrderStatus, actorID, note string, fields map[string]interface{}) (*model.OrderStatusHistory, error) {
	from := order.Status
	if !model.CanTransition(from, to) && !model.IsSystemTransition(from, to) {
		return nil, apperr.InvalidTransition("invalid_transition", "cannot move order from %s to %s", from, to)
	}
	now := s.now()
	next := order.Version + 1
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = to
	fields["version"] = next
	fields["updated_at"] = now

	ok, err := tx.Orders.CompareAndSetStatus(ctx, order.ID, from, order.Version, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidState("order_modified", "order %s was modified concurrently", order.ID)
	}

	h := &model.OrderStatusHistory{
		ID:             uuid.New().String(),
		OrderID:        order.ID,
		Sequence:       next,
		PreviousStatus: from,
		NewStatus:      to,
		ActorID:        actorID,
		Note:           note,
		CreatedAt:      now,
	}
	if err := tx.Orders.AppendHistory(ctx, h); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, apperr.InvalidState("order_modified", "order %s was modified concurrently", order.ID)
		}
		return nil, err
	}

	sellers := order.SellerIDs()
	if err := writeEvent(ctx, tx, model.EventOrderStatusChanged, order.ID, events.OrderStatusChanged{
		OrderID:   order.ID,
		From:      string(from),
		To:        string(to),
		ActorID:   actorID,
		Sequence:  next,
		SellerIDs: sellers,
	}); err != nil {
		return nil, err
	}
	if to == model.OrderStatusDelivered {
		if err := writeEvent(ctx, tx, model.EventOrderDelivered, order.ID, events.OrderDelivered{
			OrderID:     order.ID,
			SellerIDs:   sellers,
			DeliveredAt: now,
		}); err != nil {
			return nil, err
		}
	}

	order.Status = to
	order.Version = next
	return h, nil
}

// notify dispatches n and reports whether it was accepted.
func (s *orderLifecycle) notify(ctx context.Context, n *model.SellerNotification) bool {
	if s.notifier == nil {
		return false
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		logger.Warn("seller notification failed",
			zap.String("seller_id", n.SellerID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
		return false
	}
	return true
}

func (s *orderLifecycle) markNotified(ctx context.Context, h *model.OrderStatusHistory) {
	if h == nil {
		return
	}
	if err := s.store.Orders.MarkHistoryNotified(ctx, h.ID); err != nil {
		logger.Warn("mark history notified failed", zap.String("history_id", h.ID), zap.Error(err))
	}
}

func (s *orderLifecycle) reload(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("order_not_found", "order %s not found", orderID))
	}
	return order, nil
}
