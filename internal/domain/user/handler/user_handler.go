package handler

import (
	"net/http"

	"seest/internal/domain/user/model"
	"seest/internal/domain/user/service"
	"seest/internal/pkg/middleware"
	baseModel "seest/pkg/model"
	"seest/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户处理器
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

var errorTable = []response.Mapping{
	{Target: service.ErrUserNotFound, HTTPCode: http.StatusNotFound, Code: response.ErrUserNotFound},
	{Target: service.ErrCannotFollowSelf, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrInvalidProfile, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrInvalidVisibility, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrNotProfileOwner, HTTPCode: http.StatusForbidden, Code: response.ErrNoPermission},
	{Target: service.ErrNotPostAuthor, HTTPCode: http.StatusForbidden, Code: response.ErrNoPermission},
	{Target: service.ErrAskNotSavable, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrUsernameTaken, HTTPCode: http.StatusConflict, Code: response.ErrUsernameTaken},
	{Target: service.ErrUsernameCooldown, HTTPCode: http.StatusBadRequest, Code: response.ErrUsernameCooldown},
	{Target: baseModel.ErrVersionConflict, HTTPCode: http.StatusConflict, Code: response.ErrVersionConflict},
}

// VisibilityInput 收藏可见性
type VisibilityInput struct {
	Visibility model.Visibility `json:"visibility" binding:"required,oneof=public private"`
}

// SavedState 收藏状态
type SavedState struct {
	Saved bool `json:"saved"`
}

// ListUsers 用户目录
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListDirectory(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, users)
}

// GetUser 获取单个用户
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, user)
}

// GetByHandle 按用户名获取
func (h *UserHandler) GetByHandle(c *gin.Context) {
	user, err := h.userService.GetByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, user)
}

// UpdateUser 修改资料
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var input model.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), input)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, user)
}

// Follow 关注
func (h *UserHandler) Follow(c *gin.Context) {
	if err := h.userService.Follow(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, "success")
}

// Unfollow 取消关注
func (h *UserHandler) Unfollow(c *gin.Context) {
	if err := h.userService.Unfollow(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, "success")
}

// Mutuals 互相关注列表
func (h *UserHandler) Mutuals(c *gin.Context) {
	ids, err := h.userService.Mutuals(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, ids)
}

// ToggleSaved 收藏/取消收藏
func (h *UserHandler) ToggleSaved(c *gin.Context) {
	saved, err := h.userService.ToggleSaved(c.Request.Context(), middleware.CurrentUserID(c), c.Param("postId"))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, SavedState{Saved: saved})
}

// UpdateVisibility 修改收藏可见性
func (h *UserHandler) UpdateVisibility(c *gin.Context) {
	var input VisibilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	if err := h.userService.UpdateVisibility(c.Request.Context(), middleware.CurrentUserID(c), input.Visibility); err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, "success")
}

// Touch 刷新最后在线时间
func (h *UserHandler) Touch(c *gin.Context) {
	if err := h.userService.Touch(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, "success")
}
