package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/d60-Lab/market-ledger/internal/model"
)

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Create 创建订单及其明细
	Create(ctx context.Context, order *model.Order) error

	// GetByID 查询订单（含明细）
	GetByID(ctx context.Context, id string) (*model.Order, error)

	// CompareAndSetStatus 仅当状态和版本号都未变化时写入，返回是否命中
	CompareAndSetStatus(ctx context.Context, id string, from model.OrderStatus, version int64, fields map[string]interface{}) (bool, error)

	// AppendHistory 追加状态流水
	AppendHistory(ctx context.Context, h *model.OrderStatusHistory) error

	// MarkHistoryNotified 标记该条流水已发送通知
	MarkHistoryNotified(ctx context.Context, historyID string) error

	// ListHistory 按序号返回订单流水
	ListHistory(ctx context.Context, orderID string) ([]*model.OrderStatusHistory, error)

	// ListBySeller 查询包含卖家商品的订单，只带出该卖家的明细
	ListBySeller(ctx context.Context, sellerID string, status model.OrderStatus, page, pageSize int) ([]*model.Order, int64, error)

	// ListDeliveredWithoutCommission 已妥投但没有有效佣金的订单
	ListDeliveredWithoutCommission(ctx context.Context, limit int) ([]string, error)

	// SellerDeliveredRevenue 卖家已妥投订单的明细金额合计
	SellerDeliveredRevenue(ctx context.Context, sellerID string) (decimal.Decimal, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepository{db: db} }

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Omit("History").Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) CompareAndSetStatus(ctx context.Context, id string, from model.OrderStatus, version int64, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ? AND version = ?", id, from, version).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) AppendHistory(ctx context.Context, h *model.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *orderRepository) MarkHistoryNotified(ctx context.Context, historyID string) error {
	return r.db.WithContext(ctx).
		Model(&model.OrderStatusHistory{}).
		Where("id = ?", historyID).
		Update("notification_sent", true).Error
}

func (r *orderRepository) ListHistory(ctx context.Context, orderID string) ([]*model.OrderStatusHistory, error) {
	var rows []*model.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("sequence ASC").
		Find(&rows).Error
	return rows, err
}

func (r *orderRepository) ListBySeller(ctx context.Context, sellerID string, status model.OrderStatus, page, pageSize int) ([]*model.Order, int64, error) {
	owned := r.db.Model(&model.OrderItem{}).Select("order_id").Where("seller_id = ?", sellerID)
	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("id IN (?)", owned)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := offsetLimit(page, pageSize)
	var orders []*model.Order
	err := q.Preload("Items", "seller_id = ?", sellerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) ListDeliveredWithoutCommission(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("status = ?", model.OrderStatusDelivered).
		Where("NOT EXISTS (SELECT 1 FROM commissions c WHERE c.order_id = orders.id AND c.status <> ?)", model.CommissionStatusCancelled).
		Order("delivered_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *orderRepository) SellerDeliveredRevenue(ctx context.Context, sellerID string) (decimal.Decimal, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.seller_id = ? AND orders.status = ?", sellerID, model.OrderStatusDelivered).
		Select("order_items.unit_price", "order_items.quantity").
		Find(&items).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total, nil
}
