// Package middleware holds the gin middleware shared by the API routes.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/auth"
	"github.com/munichweekly/internal/config"
)

const claimsKey = "auth_claims"

// OptionalAuth 在携带有效 Bearer 令牌时写入用户声明，缺失或无效时按匿名访客处理。
func OptionalAuth(cfg config.AuthSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := auth.ParseToken(cfg, token); err == nil {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(cfg config.AuthSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetClaims(c) != nil {
			c.Next()
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing authorization header")
			return
		}
		claims, err := auth.ParseToken(cfg, token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !claims.IsAdmin() {
			abort(c, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		c.Next()
	}
}

// GetClaims returns the parsed token claims, or nil for anonymous requests.
func GetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// GetUserID returns 0 for anonymous requests.
func GetUserID(c *gin.Context) uint {
	if claims := GetClaims(c); claims != nil {
		return claims.UserID
	}
	return 0
}

// IsAdmin reports whether the request carries an admin token.
func IsAdmin(c *gin.Context) bool {
	return GetClaims(c).IsAdmin()
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}
