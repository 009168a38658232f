package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/market-ledger/internal/api/middleware"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/pkg/response"
)

type payoutRequest struct {
	Reference string `json:"reference" binding:"required,max=128"`
}

// CommissionSummary 佣金汇总
// @Summary 卖家平台佣金汇总
// @Tags 佣金
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response{data=model.CommissionSummary}
// @Router /api/v1/seller/commissions/summary [get]
func (h *Handler) CommissionSummary(c *gin.Context) {
	summary, err := h.commissions.GetSellerCommissionSummary(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

// ListCommissions 佣金明细
// @Summary 分页查询卖家佣金记录
// @Tags 佣金
// @Security BearerAuth
// @Produce json
// @Param status query string false "pending / calculated / paid / cancelled"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Router /api/v1/seller/commissions [get]
func (h *Handler) ListCommissions(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.commissions.ListSellerCommissions(c.Request.Context(), middleware.UserID(c), model.CommissionStatus(c.Query("status")), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// PayCommission 标记平台佣金已结算
// @Summary 标记平台佣金已支付
// @Tags 内部接口
// @Security InternalKey
// @Accept json
// @Produce json
// @Param id path string true "佣金ID"
// @Param request body payoutRequest true "打款流水号"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/internal/commissions/{id}/pay [post]
func (h *Handler) PayCommission(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	commission, err := h.commissions.MarkCommissionAsPaid(c.Request.Context(), c.Param("id"), req.Reference)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, commission)
}

// ReconcileCommissions 补算遗漏佣金
// @Summary 为已妥投但缺少佣金的订单补算
// @Tags 内部接口
// @Security InternalKey
// @Produce json
// @Param limit query int false "单次扫描上限" default(100)
// @Success 200 {object} response.Response
// @Router /api/v1/internal/commissions/reconcile [post]
func (h *Handler) ReconcileCommissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	result, err := h.commissions.ReconcileDeliveredOrders(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
