// Package response writes the API's JSON envelope.
package response

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/pkg/apperr"
	"github.com/d60-Lab/market-ledger/pkg/logger"
)

// RequestIDKey is the gin context key the request-id middleware stores under.
const RequestIDKey = "request_id"

const codeOK = "ok"

// Response 统一响应结构
type Response struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func requestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// Success 200
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: codeOK, Message: "success", Data: data, RequestID: requestID(c)})
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: codeOK, Message: "created", Data: data, RequestID: requestID(c)})
}

// BadRequest writes a validation error for malformed input.
func BadRequest(c *gin.Context, message string) {
	write(c, http.StatusBadRequest, string(apperr.KindValidation), message)
}

// Error maps an application error to its status and stable code. Anything
// that is not an *apperr.Error is treated as internal.
func Error(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		InternalError(c, err)
		return
	}
	write(c, appErr.HTTPStatus(), appErr.Code, appErr.Message)
}

// InternalError logs and reports err; the client only sees a generic message.
func InternalError(c *gin.Context, err error) {
	rid := requestID(c)
	logger.Error("request failed",
		zap.String("request_id", rid),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	if err != nil {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("request_id", rid)
			scope.SetRequest(c.Request)
			sentry.CaptureException(err)
		})
	}
	write(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

// Abort writes err like Error and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func write(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{Code: code, Message: message, RequestID: requestID(c)})
}
