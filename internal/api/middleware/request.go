package middleware

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/pkg/logger"
	"github.com/d60-Lab/market-ledger/pkg/response"
)

const RequestIDHeader = "X-Request-ID"

// RequestID 透传或生成请求 ID，写入上下文和响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > 64 {
			rid = uuid.New().String()
		}
		c.Set(response.RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(response.RequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if uid := UserID(c); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 and reports it to Sentry.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := c.GetString(response.RequestIDKey)
			logger.Error("panic recovered",
				zap.String("request_id", rid),
				zap.Any("panic", rec),
				zap.Stack("stack"))
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("request_id", rid)
				scope.SetRequest(c.Request)
				sentry.CurrentHub().Recover(rec)
			})
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
					Code:      "internal_error",
					Message:   "internal server error",
					RequestID: rid,
				})
				return
			}
			c.Abort()
		}()
		c.Next()
	}
}
