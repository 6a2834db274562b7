package handler

import (
	"net/http"

	"seest/internal/domain/message/model"
	"seest/internal/domain/message/service"
	"seest/internal/pkg/middleware"
	"seest/pkg/response"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService service.MessageService
}

func NewMessageHandler(messageService service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

var errorTable = []response.Mapping{
	{Target: service.ErrReceiverNotFound, HTTPCode: http.StatusNotFound, Code: response.ErrReceiverNotFound},
	{Target: service.ErrEmptyMessage, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrSelfMessage, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrInvalidMessage, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
}

// Send 发送私信
// @Summary 发送私信
// @Tags Message
// @Accept json
// @Produce json
// @Param input body model.SendInput true "私信内容"
// @Success 200 {object} model.Message
// @Router /messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	var input model.SendInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), middleware.CurrentUserID(c), input)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, msg)
}

func (h *MessageHandler) List(c *gin.Context) {
	msgs, err := h.messageService.ListForUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, msgs)
}

func (h *MessageHandler) Conversations(c *gin.Context) {
	convs, err := h.messageService.Conversations(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, convs)
}

func (h *MessageHandler) Conversation(c *gin.Context) {
	msgs, err := h.messageService.Conversation(c.Request.Context(), middleware.CurrentUserID(c), c.Param("peerId"))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, msgs)
}
