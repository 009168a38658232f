package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/d60-Lab/market-ledger/internal/api/middleware"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/service"
	"github.com/d60-Lab/market-ledger/pkg/apperr"
	"github.com/d60-Lab/market-ledger/pkg/response"
)

type createCodeRequest struct {
	UserID         string           `json:"user_id"`
	Type           string           `json:"type" binding:"required,referral_type"`
	ProductID      string           `json:"product_id"`
	SellerID       string           `json:"seller_id"`
	CommissionRate *decimal.Decimal `json:"commission_rate" swaggertype:"number"`
	MaxUsage       *int             `json:"max_usage" binding:"omitempty,min=1"`
	ExpiresAt      *time.Time       `json:"expires_at"`
}

type validateCodeRequest struct {
	Code string `json:"code" binding:"required,max=32"`
	Type string `json:"type" binding:"required,referral_type"`
}

type createReferralRequest struct {
	ReferrerID   string `json:"referrer_id" binding:"required"`
	ReferredID   string `json:"referred_id"`
	Type         string `json:"type" binding:"required,referral_type"`
	ReferralCode string `json:"referral_code" binding:"required,max=32"`
	ProductID    string `json:"product_id"`
	SellerID     string `json:"seller_id"`
}

type referralIDRequest struct {
	ReferralID string `json:"referral_id" binding:"required"`
}

type expireRequest struct {
	Now *time.Time `json:"now"`
}

// selfOrAdmin resolves the user a request acts for: the caller unless an
// admin names someone else.
func selfOrAdmin(c *gin.Context, requested string) (string, error) {
	caller := middleware.UserID(c)
	if requested == "" || requested == caller {
		return caller, nil
	}
	if middleware.Role(c) == middleware.RoleAdmin {
		return requested, nil
	}
	return "", apperr.AccessDenied("not_own_account", "cannot act for another user")
}

// CreateReferralCode 生成推荐码
// @Summary 生成推荐码
// @Tags 推荐
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body createCodeRequest true "推荐码参数"
// @Success 201 {object} response.Response{data=model.ReferralCode}
// @Failure 400 {object} response.Response
// @Router /api/v1/referrals/codes [post]
func (h *Handler) CreateReferralCode(c *gin.Context) {
	var req createCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	owner, err := selfOrAdmin(c, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	target, err := model.NewReferralTarget(model.ReferralType(req.Type), req.ProductID, req.SellerID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	code, err := h.referrals.CreateReferralCode(c.Request.Context(), service.CreateCodeInput{
		OwnerID:   owner,
		Target:    target,
		Rate:      req.CommissionRate,
		MaxUsage:  req.MaxUsage,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, code)
}

// ListReferralCodes 我的推荐码
// @Summary 查询当前用户的推荐码
// @Tags 推荐
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/referrals/codes [get]
func (h *Handler) ListReferralCodes(c *gin.Context) {
	codes, err := h.referrals.ListReferralCodes(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, codes)
}

// ValidateReferralCode 校验推荐码
// @Summary 校验推荐码是否可用
// @Tags 推荐
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body validateCodeRequest true "推荐码"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/referrals/validate [post]
func (h *Handler) ValidateReferralCode(c *gin.Context) {
	var req validateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	code, err := h.referrals.ValidateReferralCode(c.Request.Context(), req.Code, model.ReferralType(req.Type))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"valid":           true,
		"code":            code.Code,
		"type":            code.Type,
		"commission_rate": code.CommissionRate,
		"product_id":      code.ProductID,
	})
}

// CreateReferral 建立推荐关系
// @Summary 使用推荐码建立推荐关系
// @Tags 推荐
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body createReferralRequest true "推荐关系"
// @Success 201 {object} response.Response{data=model.Referral}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/referrals [post]
func (h *Handler) CreateReferral(c *gin.Context) {
	var req createReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	referred, err := selfOrAdmin(c, req.ReferredID)
	if err != nil {
		response.Error(c, err)
		return
	}
	ref, err := h.referrals.CreateReferral(c.Request.Context(), service.CreateReferralInput{
		ReferrerID: req.ReferrerID,
		ReferredID: referred,
		Type:       model.ReferralType(req.Type),
		Code:       req.ReferralCode,
		ProductID:  req.ProductID,
		SellerID:   req.SellerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ref)
}

// ListReferrals 我发起的推荐
// @Summary 查询当前用户作为推荐人的推荐关系
// @Tags 推荐
// @Security BearerAuth
// @Produce json
// @Param status query string false "推荐状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/referrals [get]
func (h *Handler) ListReferrals(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.referrals.ListReferrals(c.Request.Context(), middleware.UserID(c), model.ReferralStatus(c.Query("status")), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ActivateReferral 激活推荐
// @Summary pending -> active
// @Tags 推荐
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body referralIDRequest true "推荐ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/referrals/activate [post]
func (h *Handler) ActivateReferral(c *gin.Context) {
	h.referralTransition(c, h.referrals.ActivateReferral)
}

// CompleteReferral 完成推荐
// @Summary active -> completed
// @Tags 推荐
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body referralIDRequest true "推荐ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/referrals/complete [post]
func (h *Handler) CompleteReferral(c *gin.Context) {
	h.referralTransition(c, h.referrals.CompleteReferral)
}

// CancelReferral 取消推荐
// @Summary pending|active -> cancelled
// @Tags 推荐
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body referralIDRequest true "推荐ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/referrals/cancel [post]
func (h *Handler) CancelReferral(c *gin.Context) {
	h.referralTransition(c, h.referrals.CancelReferral)
}

func (h *Handler) referralTransition(c *gin.Context, fn func(context.Context, string) (*model.Referral, error)) {
	var req referralIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	// 非管理员只能操作自己发起的推荐
	if middleware.Role(c) != middleware.RoleAdmin {
		owned, err := h.referrals.GetReferral(c.Request.Context(), req.ReferralID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if owned.ReferrerID != middleware.UserID(c) {
			response.Error(c, apperr.AccessDenied("referral_not_owned", "referral belongs to another referrer"))
			return
		}
	}
	ref, err := fn(c.Request.Context(), req.ReferralID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ref)
}

// ReferralStats 推荐统计
// @Summary 推荐人统计（各状态数量、佣金合计）
// @Tags 推荐
// @Security BearerAuth
// @Produce json
// @Param userId path string true "用户ID"
// @Success 200 {object} response.Response{data=model.ReferralStats}
// @Failure 403 {object} response.Response
// @Router /api/v1/referrals/stats/{userId} [get]
func (h *Handler) ReferralStats(c *gin.Context) {
	userID, err := selfOrAdmin(c, c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.referrals.GetReferralStats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// ProcessOrderReferralCommission 订单推荐佣金
// @Summary 为已妥投订单计提商品推荐佣金
// @Tags 内部接口
// @Security InternalKey
// @Produce json
// @Param orderId path string true "订单ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 412 {object} response.Response
// @Router /api/v1/referrals/process-order-commission/{orderId} [post]
func (h *Handler) ProcessOrderReferralCommission(c *gin.Context) {
	created, err := h.referrals.ProcessOrderCommission(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"created": created})
}

// ProcessSellerReferralCommission 卖家推荐佣金
// @Summary 卖家审核通过后按营收快照计提推荐佣金
// @Tags 内部接口
// @Security InternalKey
// @Produce json
// @Param sellerId path string true "卖家ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 412 {object} response.Response
// @Router /api/v1/referrals/process-seller-commission/{sellerId} [post]
func (h *Handler) ProcessSellerReferralCommission(c *gin.Context) {
	rc, err := h.referrals.ProcessSellerCommission(c.Request.Context(), c.Param("sellerId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rc)
}

// PayReferralCommission 标记推荐佣金已支付
// @Summary 推荐佣金 earned -> paid
// @Tags 内部接口
// @Security InternalKey
// @Accept json
// @Produce json
// @Param id path string true "推荐佣金ID"
// @Param request body payoutRequest true "交易流水号"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/internal/referral-commissions/{id}/pay [post]
func (h *Handler) PayReferralCommission(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rc, err := h.referrals.MarkCommissionAsPaid(c.Request.Context(), c.Param("id"), req.Reference)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rc)
}

// ExpireReferrals 过期清理
// @Summary 将超期未激活的推荐标记为 expired
// @Tags 内部接口
// @Security InternalKey
// @Accept json
// @Produce json
// @Param request body expireRequest false "截止时间，默认当前时间"
// @Success 200 {object} response.Response
// @Router /api/v1/internal/referrals/expire [post]
func (h *Handler) ExpireReferrals(c *gin.Context) {
	var req expireRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	now := time.Now()
	if req.Now != nil {
		now = *req.Now
	}
	n, err := h.referrals.ExpireReferrals(c.Request.Context(), now)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"expired": n})
}
