package handler

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/service"
	"github.com/d60-Lab/market-ledger/pkg/response"
)

// HealthCheck reports one dependency's readiness.
type HealthCheck func(ctx context.Context) error

// Handler 聚合各业务服务的 HTTP 入口
type Handler struct {
	orders        service.OrderLifecycle
	commissions   service.CommissionService
	referrals     service.ReferralService
	notifications service.NotificationService
	checks        map[string]HealthCheck
}

func New(
	orders service.OrderLifecycle,
	commissions service.CommissionService,
	referrals service.ReferralService,
	notifications service.NotificationService,
	checks map[string]HealthCheck,
) *Handler {
	return &Handler{
		orders:        orders,
		commissions:   commissions,
		referrals:     referrals,
		notifications: notifications,
		checks:        checks,
	}
}

var registerOnce sync.Once

// RegisterValidators adds the ledger's enum tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
			return model.OrderStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("payment_status", func(fl validator.FieldLevel) bool {
			return model.PaymentStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("referral_type", func(fl validator.FieldLevel) bool {
			return model.ReferralType(fl.Field().String()).Valid()
		})
	})
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// Health 健康检查
// @Summary 健康检查
// @Tags 运维
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, response.Response{
			Code:      "unhealthy",
			Message:   "dependency check failed",
			Data:      status,
			RequestID: c.GetString(response.RequestIDKey),
		})
		return
	}
	response.Success(c, status)
}
