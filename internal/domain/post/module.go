package post

import (
	"seest/internal/domain/post/handler"
	"seest/internal/domain/post/repository"
	"seest/internal/domain/post/service"
	userRepository "seest/internal/domain/user/repository"
	"seest/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// PostModule 动态模块
type PostModule struct{}

func init() {
	registry.Register(&PostModule{})
}

func (m *PostModule) Name() string {
	return "post"
}

func (m *PostModule) Priority() int {
	return 10
}

func (m *PostModule) Init(ctx *registry.ModuleContext) error {
	postRepo := repository.NewPostRepository(ctx.DB)
	userRepo := userRepository.NewUserRepository(ctx.DB)
	postService := service.NewPostService(postRepo, userRepo, ctx.Notifier, ctx.Feed, ctx.Pool, ctx.Config.Feed)
	postHandler := handler.NewPostHandler(postService)

	setupRoutes(ctx.Router, ctx.Auth, postHandler)
	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.PostHandler) {
	postGroup := r.Group("/posts")
	postGroup.Use(auth)
	{
		postGroup.GET("", h.ListActive)
		postGroup.POST("", h.Create)
		postGroup.GET("/:id", h.Get)
		postGroup.PUT("/:id", h.Update)
		postGroup.DELETE("/:id", h.Delete)
		postGroup.POST("/:id/reactions", h.React)
		postGroup.POST("/:id/comments", h.Comment)
		postGroup.POST("/:id/replies", h.Reply)
	}
}
