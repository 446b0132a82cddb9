package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/middleware"
	"github.com/munichweekly/internal/service"
)

type registerPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

func (p registerPayload) toInput() service.RegisterInput {
	return service.RegisterInput{Email: p.Email, Password: p.Password, Nickname: p.Nickname}
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 创建普通用户账号并直接返回访问令牌。
func (a *API) Register(c *gin.Context) {
	var payload registerPayload
	if !bindJSON(c, &payload) {
		return
	}

	user, err := a.users.Register(payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to register user")
		return
	}

	result, err := a.users.Login(payload.Email, payload.Password, a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to issue token")
		return
	}

	a.logger.WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusCreated, gin.H{"user": result.User, "token": result.Token})
}

// Login 校验邮箱密码并签发 JWT。
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload) {
		return
	}

	result, err := a.users.Login(payload.Email, payload.Password, a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to login")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": result.User, "token": result.Token})
}

// Me returns the profile behind the bearer token.
func (a *API) Me(c *gin.Context) {
	user, err := a.users.Get(middleware.GetUserID(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
