package handler

import (
	"net/http"

	"seest/internal/domain/post/model"
	"seest/internal/domain/post/service"
	"seest/internal/pkg/middleware"
	baseModel "seest/pkg/model"
	"seest/pkg/response"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	postService service.PostService
}

func NewPostHandler(postService service.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

var errorTable = []response.Mapping{
	{Target: service.ErrPostNotFound, HTTPCode: http.StatusNotFound, Code: response.ErrPostNotFound},
	{Target: service.ErrNotAuthor, HTTPCode: http.StatusForbidden, Code: response.ErrNoPermission},
	{Target: service.ErrInvalidPost, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrInvalidReaction, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrWrongPostType, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: baseModel.ErrVersionConflict, HTTPCode: http.StatusConflict, Code: response.ErrVersionConflict},
}

type ReactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

type ReactionState struct {
	Emoji string `json:"emoji"`
}

// --- Post ---

// ListActive 保留期内的动态以及自己收藏的动态
// @Summary 获取动态流
// @Tags Post
// @Produce json
// @Success 200 {array} model.PostView
// @Router /posts [get]
func (h *PostHandler) ListActive(c *gin.Context) {
	posts, err := h.postService.ListActive(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, posts)
}

func (h *PostHandler) Get(c *gin.Context) {
	post, err := h.postService.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, post)
}

// Create 发布动态
// @Summary 发布动态
// @Tags Post
// @Accept json
// @Produce json
// @Param input body model.CreateInput true "动态内容"
// @Success 200 {object} model.PostView
// @Router /posts [post]
func (h *PostHandler) Create(c *gin.Context) {
	var req model.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	post, err := h.postService.Create(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, post)
}

// Update 修改动态
// @Summary 修改动态正文与状态
// @Tags Post
// @Accept json
// @Produce json
// @Param id path string true "动态ID"
// @Param input body model.UpdateInput true "修改内容"
// @Success 200 {object} model.PostView
// @Router /posts/{id} [put]
func (h *PostHandler) Update(c *gin.Context) {
	var req model.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	post, err := h.postService.Update(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.postService.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, "success")
}

// --- Reaction / Comment / Reply ---

// React 表情回应，同一表情再次提交即取消
// @Summary 表情回应
// @Tags Post
// @Accept json
// @Produce json
// @Param id path string true "动态ID"
// @Param input body ReactRequest true "表情"
// @Success 200 {object} ReactionState
// @Router /posts/{id}/reactions [post]
func (h *PostHandler) React(c *gin.Context) {
	var req ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	emoji, err := h.postService.React(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req.Emoji)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, ReactionState{Emoji: emoji})
}

func (h *PostHandler) Comment(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	comment, err := h.postService.Comment(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req.Text)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, comment)
}

func (h *PostHandler) Reply(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	reply, err := h.postService.Reply(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), req.Text)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, reply)
}
