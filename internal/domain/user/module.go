package user

import (
	postRepository "seest/internal/domain/post/repository"
	"seest/internal/domain/user/handler"
	"seest/internal/domain/user/repository"
	"seest/internal/domain/user/service"
	"seest/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// UserModule 用户模块
type UserModule struct{}

func init() {
	// 自动注册模块
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	return 5
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	userRepo := repository.NewUserRepository(ctx.DB)
	postRepo := postRepository.NewPostRepository(ctx.DB)
	userService := service.NewUserService(userRepo, postRepo, ctx.Notifier, ctx.Feed)
	if ctx.Cache != nil {
		userService = service.NewCachedUserService(userService, ctx.Cache)
	}
	userHandler := handler.NewUserHandler(userService)

	// 2. 路由注册
	setupRoutes(ctx.Router, ctx.Auth, userHandler)

	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.UserHandler) {
	userGroup := r.Group("/users")
	userGroup.Use(auth)
	{
		userGroup.GET("", h.ListUsers)
		userGroup.GET("/:id", h.GetUser)
		userGroup.PUT("/:id", h.UpdateUser)
		userGroup.POST("/:id/follow", h.Follow)
		userGroup.DELETE("/:id/follow", h.Unfollow)
	}

	r.GET("/handles/:handle", auth, h.GetByHandle)

	me := r.Group("/me")
	me.Use(auth)
	{
		me.GET("/mutuals", h.Mutuals)
		me.PUT("/visibility", h.UpdateVisibility)
		me.POST("/touch", h.Touch)
		me.POST("/saved/:postId", h.ToggleSaved)
	}
}
