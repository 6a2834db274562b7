package auth

import (
	"time"

	"seest/internal/domain/auth/handler"
	"seest/internal/domain/auth/repository"
	"seest/internal/domain/auth/service"
	"seest/internal/pkg/middleware"
	"seest/internal/pkg/otp"
	"seest/internal/pkg/registry"
	"seest/pkg/cache"
	"seest/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthModule 账号与会话模块
type AuthModule struct{}

func init() {
	registry.Register(&AuthModule{})
}

func (m *AuthModule) Name() string {
	return "auth"
}

func (m *AuthModule) Priority() int {
	// 其他模块的路由都依赖认证中间件
	return 0
}

func (m *AuthModule) Init(ctx *registry.ModuleContext) error {
	store := ctx.Cache
	if store == nil {
		store = cache.NewMemoryCache()
	}

	repo := repository.NewAccountRepository(ctx.DB)
	issuer := utils.NewTokenIssuer(ctx.Config.JWT.Secret, time.Duration(ctx.Config.JWT.Expire)*time.Hour)
	svc := service.NewAuthService(repo, issuer, otp.NewTokenStore(store), nil, ctx.Feed, ctx.Cache)
	h := handler.NewAuthHandler(svc)
	ctx.Auth = middleware.AuthMiddleware(svc)

	setupRoutes(ctx.Router, ctx.Auth, h)
	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.AuthHandler) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", h.SignUp)
		authGroup.POST("/signin", h.SignIn)
		authGroup.POST("/reset", h.ResetPassword)
		authGroup.POST("/reset/confirm", h.ConfirmReset)
	}

	sessionGroup := r.Group("/auth")
	sessionGroup.Use(auth)
	{
		sessionGroup.GET("/session", h.Session)
		sessionGroup.POST("/signout", h.SignOut)
		sessionGroup.PUT("/password", h.ChangePassword)
		sessionGroup.DELETE("/account", h.DeleteAccount)
	}
}
