package handler

import (
	"net/http"

	"seest/internal/domain/notification/service"
	"seest/internal/pkg/middleware"
	"seest/pkg/response"
	"seest/pkg/utils"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service service.NotificationService
}

func NewNotificationHandler(s service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: s}
}

// UnreadStatus 未读状态
type UnreadStatus struct {
	Count     int64 `json:"count"`
	HasUnread bool  `json:"hasUnread"`
}

// List 获取通知列表（按时间倒序）
func (h *NotificationHandler) List(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	list, err := h.service.List(c.Request.Context(), middleware.CurrentUserID(c), p.Normalize(50, 200))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, list)
}

// MarkAllRead 全部标记为已读
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.service.MarkAllRead(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, "success")
}

// Unread 未读数量
func (h *NotificationHandler) Unread(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, UnreadStatus{Count: count, HasUnread: count > 0})
}
