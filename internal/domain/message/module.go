package message

import (
	"errors"

	"seest/internal/domain/message/handler"
	"seest/internal/domain/message/repository"
	"seest/internal/domain/message/service"
	"seest/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// MessageModule 私信模块
type MessageModule struct{}

func init() {
	registry.Register(&MessageModule{})
}

func (m *MessageModule) Name() string {
	return "message"
}

func (m *MessageModule) Priority() int {
	return 10
}

func (m *MessageModule) Init(ctx *registry.ModuleContext) error {
	if ctx.SQL == nil {
		return errors.New("message module requires an sqlx connection")
	}
	messageRepo := repository.NewMessageRepository(ctx.SQL)
	messageService := service.NewMessageService(messageRepo, ctx.Feed)
	messageHandler := handler.NewMessageHandler(messageService)

	setupRoutes(ctx.Router, ctx.Auth, messageHandler)
	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.MessageHandler) {
	messageGroup := r.Group("/messages")
	messageGroup.Use(auth)
	{
		messageGroup.GET("", h.List)
		messageGroup.POST("", h.Send)
		messageGroup.GET("/conversations", h.Conversations)
		messageGroup.GET("/conversations/:peerId", h.Conversation)
	}
}
