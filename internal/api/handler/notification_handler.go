package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/market-ledger/internal/api/middleware"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/pkg/response"
)

// ListNotifications 卖家通知列表
// @Summary 分页查询通知（含未读数）
// @Tags 卖家通知
// @Security BearerAuth
// @Produce json
// @Param status query string false "unread / read / archived"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Router /api/v1/seller/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.notifications.List(c.Request.Context(), middleware.UserID(c), model.NotificationStatus(c.Query("status")), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// MarkNotificationRead 标记已读
// @Summary 标记单条通知已读
// @Tags 卖家通知
// @Security BearerAuth
// @Produce json
// @Param id path string true "通知ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/seller/notifications/{id}/read [put]
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	n, err := h.notifications.MarkAsRead(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, n)
}

// MarkAllNotificationsRead 全部已读
// @Summary 标记全部通知已读
// @Tags 卖家通知
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/seller/notifications/read-all [put]
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	updated, err := h.notifications.MarkAllAsRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated": updated})
}

// ArchiveNotification 归档
// @Summary 归档通知
// @Tags 卖家通知
// @Security BearerAuth
// @Produce json
// @Param id path string true "通知ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/seller/notifications/{id}/archive [put]
func (h *Handler) ArchiveNotification(c *gin.Context) {
	n, err := h.notifications.Archive(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, n)
}
