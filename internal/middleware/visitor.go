package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const visitorSessionKey = "visitor_id"

// VisitorID 返回会话中的匿名访客 ID，不存在时生成并写回 cookie。
func VisitorID(c *gin.Context) string {
	session := sessions.Default(c)
	if v, ok := session.Get(visitorSessionKey).(string); ok && v != "" {
		return v
	}
	id := uuid.NewString()
	session.Set(visitorSessionKey, id)
	if err := session.Save(); err != nil {
		_ = c.Error(err)
	}
	return id
}
