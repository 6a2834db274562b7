package handler

import (
	"net/http"

	"seest/internal/domain/auth/model"
	"seest/internal/domain/auth/service"
	"seest/internal/pkg/middleware"
	"seest/internal/pkg/otp"
	"seest/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

var errorTable = []response.Mapping{
	{Target: service.ErrEmailTaken, HTTPCode: http.StatusConflict, Code: response.ErrUserExists},
	{Target: service.ErrInvalidCredentials, HTTPCode: http.StatusUnauthorized, Code: response.ErrAuthFailed},
	{Target: service.ErrSessionInvalid, HTTPCode: http.StatusUnauthorized, Code: response.ErrTokenInvalid},
	{Target: service.ErrInvalidResetToken, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidResetToken},
	{Target: service.ErrAccountNotFound, HTTPCode: http.StatusNotFound, Code: response.ErrUserNotFound},
	{Target: service.ErrWeakPassword, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrInvalidEmail, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: service.ErrInvalidName, HTTPCode: http.StatusBadRequest, Code: response.ErrInvalidParam},
	{Target: otp.ErrTooFrequent, HTTPCode: http.StatusTooManyRequests, Code: response.ErrTooManyRequests},
}

// SignUp 注册
// @Summary 邮箱注册
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body model.SignUpInput true "注册信息"
// @Success 200 {object} model.Session
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var input model.SignUpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	session, err := h.authService.SignUp(c.Request.Context(), input)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, session)
}

// SignIn 登录
// @Summary 邮箱密码登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body model.SignInInput true "登录信息"
// @Success 200 {object} model.Session
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var input model.SignInInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	session, err := h.authService.SignIn(c.Request.Context(), input)
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, session)
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.authService.SignOut(c.Request.Context(), middleware.CurrentToken(c)); err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, nil)
}

func (h *AuthHandler) Session(c *gin.Context) {
	session, err := h.authService.GetSession(c.Request.Context(), middleware.CurrentToken(c))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, session)
}

// ResetPassword 发送重置密码邮件
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var input model.ResetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), input.Email); err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, nil)
}

func (h *AuthHandler) ConfirmReset(c *gin.Context) {
	var input model.ConfirmResetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.authService.ConfirmReset(c.Request.Context(), input.Token, input.Password); err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, nil)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var input model.ChangePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), middleware.CurrentUserID(c), input.Password); err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, nil)
}

// DeleteAccount 删除账号及全部数据
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	err := h.authService.DeleteAccount(c.Request.Context(), middleware.CurrentUserID(c), middleware.CurrentToken(c))
	if err != nil {
		response.FromError(c, err, errorTable)
		return
	}
	response.Success(c, nil)
}
