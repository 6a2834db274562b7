package handler

import (
	"context"
	"net/http"

	"seest/internal/domain/event/model"
	"seest/internal/domain/event/service"
	"seest/internal/pkg/middleware"
	baseModel "seest/pkg/model"
	"seest/pkg/response"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	eventService service.EventService
}

func NewEventHandler(eventService service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

var errorTable = []response.Mapping{
	{Target: service.ErrEventNotFound, HTTPCode: http.StatusNotFound, Code: response.ErrEventNotFound},
	{Target: service.ErrCommentNotFound, HTTPCode: http.StatusNotFound, Code: response.ErrCommentNotFound},
	{Target: service.ErrEventEnded, HTTPCode: http.StatusConflict, Code: response.ErrEventEnded},
	{Target: service.ErrNotAllowed, HTTPCode: http.StatusForbidden, Code: response.ErrEventNotAllowed},
	{Target: service.ErrInvalidEvent, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrInvalidTarget, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: baseModel.ErrVersionConflict, HTTPCode: http.StatusConflict, Code: response.ErrVersionConflict},
}

type CommentInput struct {
	Text string `json:"text" binding:"required"`
}

type TargetInput struct {
	UserID string `json:"userId" binding:"required"`
}

// ListLive 进行中的直播间
// @Summary 进行中的直播间
// @Tags Event
// @Produce json
// @Success 200 {array} model.Event
// @Router /events [get]
func (h *EventHandler) ListLive(c *gin.Context) {
	events, err := h.eventService.ListLive(c.Request.Context())
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, events)
}

func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.eventService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, event)
}

// Create 开播
// @Summary 创建直播间
// @Tags Event
// @Accept json
// @Produce json
// @Param input body model.CreateInput true "直播间信息"
// @Success 200 {object} model.Event
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var input model.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	event, err := h.eventService.Create(c.Request.Context(), middleware.CurrentUserID(c), input)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, event)
}

// action 无请求体的直播间操作
func (h *EventHandler) action(fn func(svc service.EventService, c *gin.Context, actorID, id string) (*model.Event, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := fn(h.eventService, c, middleware.CurrentUserID(c), c.Param("id"))
		if err != nil {
			response.FromError(c, err, errorTable)
			return
		}
		response.Success(c, event)
	}
}

func (h *EventHandler) Join() gin.HandlerFunc {
	return h.action(func(svc service.EventService, c *gin.Context, actorID, id string) (*model.Event, error) {
		return svc.Join(c.Request.Context(), actorID, id)
	})
}

func (h *EventHandler) Leave() gin.HandlerFunc {
	return h.action(func(svc service.EventService, c *gin.Context, actorID, id string) (*model.Event, error) {
		return svc.Leave(c.Request.Context(), actorID, id)
	})
}

func (h *EventHandler) End() gin.HandlerFunc {
	return h.action(func(svc service.EventService, c *gin.Context, actorID, id string) (*model.Event, error) {
		return svc.End(c.Request.Context(), actorID, id)
	})
}

func (h *EventHandler) Pin() gin.HandlerFunc {
	return h.action(func(svc service.EventService, c *gin.Context, actorID, id string) (*model.Event, error) {
		return svc.Pin(c.Request.Context(), actorID, id, c.Param("commentId"))
	})
}

func (h *EventHandler) Unpin() gin.HandlerFunc {
	return h.action(func(svc service.EventService, c *gin.Context, actorID, id string) (*model.Event, error) {
		return svc.Unpin(c.Request.Context(), actorID, id)
	})
}

func (h *EventHandler) DeleteComment() gin.HandlerFunc {
	return h.action(func(svc service.EventService, c *gin.Context, actorID, id string) (*model.Event, error) {
		return svc.DeleteComment(c.Request.Context(), actorID, id, c.Param("commentId"))
	})
}

func (h *EventHandler) Comment(c *gin.Context) {
	var input CommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	comment, err := h.eventService.Comment(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), input.Text)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, comment)
}

func (h *EventHandler) ToggleModerator(c *gin.Context) {
	h.withTarget(c, h.eventService.ToggleModerator)
}

func (h *EventHandler) ToggleMute(c *gin.Context) {
	h.withTarget(c, h.eventService.ToggleMute)
}

func (h *EventHandler) withTarget(c *gin.Context, fn func(ctx context.Context, actorID, id, targetID string) (*model.Event, error)) {
	var input TargetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	event, err := fn(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), input.UserID)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, event)
}
