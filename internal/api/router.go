package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/market-ledger/docs"
	"github.com/d60-Lab/market-ledger/internal/api/handler"
	"github.com/d60-Lab/market-ledger/internal/api/middleware"
)

type RouterOptions struct {
	Mode            string
	ServiceName     string
	Tracing         bool
	Swagger         bool
	JWTSecret       string
	JWTIssuer       string
	InternalKeyHash string
	// ReferralLimiter throttles code validation and referral creation per client IP.
	ReferralLimiter *middleware.KeyedLimiter
}

// NewRouter 注册全部路由
func NewRouter(h *handler.Handler, opts RouterOptions) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	handler.RegisterValidators()

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(), middleware.AccessLog())
	if opts.Tracing {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", h.Health)
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWTAuth(opts.JWTSecret, opts.JWTIssuer)
	internal := middleware.InternalKey(opts.InternalKeyHash)
	limited := middleware.RateLimit(opts.ReferralLimiter)

	v1 := r.Group("/api/v1")

	seller := v1.Group("/seller", auth, middleware.RequireRole(middleware.RoleSeller))
	{
		seller.GET("/orders", h.ListSellerOrders)
		seller.GET("/orders/:id/history", h.OrderHistory)
		seller.POST("/orders/accept", h.AcceptOrder)
		seller.PUT("/orders/status", h.UpdateOrderStatus)

		seller.GET("/notifications", h.ListNotifications)
		seller.PUT("/notifications/read-all", h.MarkAllNotificationsRead)
		seller.PUT("/notifications/:id/read", h.MarkNotificationRead)
		seller.PUT("/notifications/:id/archive", h.ArchiveNotification)

		seller.GET("/commissions/summary", h.CommissionSummary)
		seller.GET("/commissions", h.ListCommissions)
	}

	referrals := v1.Group("/referrals")
	{
		referrals.POST("/process-order-commission/:orderId", internal, h.ProcessOrderReferralCommission)
		referrals.POST("/process-seller-commission/:sellerId", internal, h.ProcessSellerReferralCommission)

		user := referrals.Group("", auth)
		user.POST("/codes", h.CreateReferralCode)
		user.GET("/codes", h.ListReferralCodes)
		user.POST("/validate", limited, h.ValidateReferralCode)
		user.POST("", limited, h.CreateReferral)
		user.GET("", h.ListReferrals)
		user.POST("/activate", middleware.RequireRole(middleware.RoleAdmin), h.ActivateReferral)
		user.POST("/complete", middleware.RequireRole(middleware.RoleAdmin), h.CompleteReferral)
		user.POST("/cancel", h.CancelReferral)
		user.GET("/stats/:userId", h.ReferralStats)
	}

	ops := v1.Group("/internal", internal)
	{
		ops.POST("/orders", h.PlaceOrder)
		ops.POST("/commissions/:id/pay", h.PayCommission)
		ops.POST("/commissions/reconcile", h.ReconcileCommissions)
		ops.POST("/referral-commissions/:id/pay", h.PayReferralCommission)
		ops.POST("/referrals/expire", h.ExpireReferrals)
	}

	return r
}
