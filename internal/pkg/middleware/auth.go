package middleware

import (
	"context"
	"net/http"
	"strings"

	"seest/pkg/response"
	"seest/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID    = "userID"
	ContextSessionID = "sessionID"
	ContextToken     = "token"
)

// TokenVerifier 校验会话 Token（签名、过期与是否已登出）
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*utils.Claims, error)
}

// AuthMiddleware JWT认证中间件，websocket 握手无法带请求头时可使用 access_token 参数
func AuthMiddleware(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Authorization header is required")
			return
		}

		claims, err := v.Verify(c.Request.Context(), tokenString)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid or expired token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextSessionID, claims.ID)
		c.Set(ContextToken, tokenString)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if t := c.Query("access_token"); t != "" {
			return t, true
		}
		return "", false
	}

	// 检查格式 "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// CurrentUserID 获取当前登录用户 ID
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// CurrentToken 获取当前请求的 Token
func CurrentToken(c *gin.Context) string {
	return c.GetString(ContextToken)
}
