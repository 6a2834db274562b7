package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// Abort 错误响应并中断后续 handler
func Abort(c *gin.Context, httpCode int, errCode int, msg string) {
	Error(c, httpCode, errCode, msg)
	c.Abort()
}

// Mapping 领域错误到 HTTP 状态码/业务码的映射
type Mapping struct {
	Target   error
	HTTPCode int
	Code     int
}

// FromError 按映射表输出错误，未命中时返回 500
func FromError(c *gin.Context, err error, table []Mapping) {
	for _, m := range table {
		if errors.Is(err, m.Target) {
			Error(c, m.HTTPCode, m.Code, err.Error())
			return
		}
	}
	Error(c, http.StatusInternalServerError, ErrServerInternal, err.Error())
}
