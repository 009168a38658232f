package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/d60-Lab/market-ledger/internal/api/middleware"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/service"
	"github.com/d60-Lab/market-ledger/pkg/response"
)

type acceptOrderRequest struct {
	OrderID                 string `json:"order_id" binding:"required"`
	Notes                   string `json:"notes" binding:"max=2000"`
	EstimatedProcessingTime string `json:"estimated_processing_time" binding:"max=64"`
}

type updateStatusRequest struct {
	OrderID               string     `json:"order_id" binding:"required"`
	Status                string     `json:"status" binding:"required,order_status"`
	Notes                 string     `json:"notes" binding:"max=2000"`
	TrackingNumber        string     `json:"tracking_number" binding:"max=128"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date"`
}

type placeOrderItemRequest struct {
	ProductID   string          `json:"product_id" binding:"required"`
	ProductName string          `json:"product_name"`
	ProductSlug string          `json:"product_slug"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity" binding:"required,min=1"`
	Variant     json.RawMessage `json:"variant" swaggertype:"object"`
}

type placeOrderRequest struct {
	OrderID         string                  `json:"order_id"`
	BuyerID         string                  `json:"buyer_id"`
	GuestEmail      string                  `json:"guest_email" binding:"omitempty,email"`
	Subtotal        decimal.Decimal         `json:"subtotal"`
	Tax             decimal.Decimal         `json:"tax"`
	ShippingCost    decimal.Decimal         `json:"shipping_cost"`
	Discount        decimal.Decimal         `json:"discount"`
	Total           decimal.Decimal         `json:"total"`
	PaymentStatus   string                  `json:"payment_status" binding:"omitempty,payment_status"`
	PaymentMethod   string                  `json:"payment_method"`
	ShippingAddress json.RawMessage         `json:"shipping_address" swaggertype:"object"`
	BillingAddress  json.RawMessage         `json:"billing_address" swaggertype:"object"`
	Items           []placeOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ListSellerOrders 卖家订单列表
// @Summary 查询卖家订单（只包含本卖家的明细）
// @Tags 卖家订单
// @Security BearerAuth
// @Produce json
// @Param status query string false "订单状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/seller/orders [get]
func (h *Handler) ListSellerOrders(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.orders.ListSellerOrders(c.Request.Context(), middleware.UserID(c), model.OrderStatus(c.Query("status")), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// OrderHistory 订单状态流水
// @Summary 查询订单状态变更历史
// @Tags 卖家订单
// @Security BearerAuth
// @Produce json
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/seller/orders/{id}/history [get]
func (h *Handler) OrderHistory(c *gin.Context) {
	rows, err := h.orders.GetOrderHistory(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

// AcceptOrder 卖家接单
// @Summary 接受已通知的订单
// @Tags 卖家订单
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body acceptOrderRequest true "接单信息"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/seller/orders/accept [post]
func (h *Handler) AcceptOrder(c *gin.Context) {
	var req acceptOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orders.AcceptOrder(c.Request.Context(), service.AcceptOrderInput{
		OrderID:                 req.OrderID,
		SellerID:                middleware.UserID(c),
		Notes:                   req.Notes,
		EstimatedProcessingTime: req.EstimatedProcessingTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// UpdateOrderStatus 推进订单状态
// @Summary 更新订单状态
// @Tags 卖家订单
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body updateStatusRequest true "目标状态"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/seller/orders/status [put]
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), service.UpdateStatusInput{
		OrderID:               req.OrderID,
		SellerID:              middleware.UserID(c),
		Status:                model.OrderStatus(req.Status),
		Notes:                 req.Notes,
		TrackingNumber:        req.TrackingNumber,
		EstimatedDeliveryDate: req.EstimatedDeliveryDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// PlaceOrder 结账服务下单入口
// @Summary 录入新订单并通知卖家
// @Tags 内部接口
// @Security InternalKey
// @Accept json
// @Produce json
// @Param request body placeOrderRequest true "订单"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/internal/orders [post]
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	in := service.PlaceOrderInput{
		OrderID:         req.OrderID,
		BuyerID:         req.BuyerID,
		GuestEmail:      req.GuestEmail,
		Subtotal:        req.Subtotal,
		Tax:             req.Tax,
		ShippingCost:    req.ShippingCost,
		Discount:        req.Discount,
		Total:           req.Total,
		PaymentStatus:   model.PaymentStatus(req.PaymentStatus),
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.PlaceOrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSlug: it.ProductSlug,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Variant:     it.Variant,
		})
	}
	order, err := h.orders.PlaceOrder(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}
