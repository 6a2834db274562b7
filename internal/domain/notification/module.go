package notification

import (
	"seest/internal/domain/notification/handler"
	"seest/internal/domain/notification/repository"
	"seest/internal/domain/notification/service"
	"seest/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// NotificationModule 通知模块
type NotificationModule struct{}

func init() {
	registry.Register(&NotificationModule{})
}

func (m *NotificationModule) Name() string {
	return "notification"
}

func (m *NotificationModule) Priority() int {
	// 动态、关注、直播间都依赖通知，需在它们之前初始化
	return 1
}

func (m *NotificationModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	repo := repository.NewNotificationRepository(ctx.DB)
	svc := service.NewNotificationService(repo, ctx.Feed, ctx.Pusher, ctx.Pool)
	h := handler.NewNotificationHandler(svc)
	ctx.Notifier = svc

	// 2. 路由注册
	setupRoutes(ctx.Router, ctx.Auth, h)
	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.NotificationHandler) {
	g := r.Group("/notifications")
	g.Use(auth)
	{
		g.GET("", h.List)
		g.GET("/unread", h.Unread)
		g.POST("/read", h.MarkAllRead)
	}
}
