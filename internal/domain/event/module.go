package event

import (
	"seest/internal/domain/event/handler"
	"seest/internal/domain/event/repository"
	"seest/internal/domain/event/service"
	"seest/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// EventModule 直播间模块
type EventModule struct{}

func init() {
	registry.Register(&EventModule{})
}

func (m *EventModule) Name() string {
	return "event"
}

func (m *EventModule) Priority() int {
	return 10
}

func (m *EventModule) Init(ctx *registry.ModuleContext) error {
	eventRepo := repository.NewEventRepository(ctx.DB)
	eventService := service.NewEventService(eventRepo, ctx.Feed)
	eventHandler := handler.NewEventHandler(eventService)

	setupRoutes(ctx.Router, ctx.Auth, eventHandler)
	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.EventHandler) {
	eventGroup := r.Group("/events")
	eventGroup.Use(auth)
	{
		eventGroup.GET("", h.ListLive)
		eventGroup.POST("", h.Create)
		eventGroup.GET("/:id", h.Get)
		eventGroup.POST("/:id/join", h.Join())
		eventGroup.POST("/:id/leave", h.Leave())
		eventGroup.POST("/:id/end", h.End())
		eventGroup.POST("/:id/comments", h.Comment)
		eventGroup.DELETE("/:id/comments/:commentId", h.DeleteComment())
		eventGroup.POST("/:id/pin/:commentId", h.Pin())
		eventGroup.DELETE("/:id/pin", h.Unpin())
		eventGroup.POST("/:id/moderators", h.ToggleModerator)
		eventGroup.POST("/:id/muted", h.ToggleMute)
	}
}
