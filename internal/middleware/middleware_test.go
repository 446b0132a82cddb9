package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/auth"
	"github.com/munichweekly/internal/config"
	"github.com/munichweekly/internal/db"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthSettings() config.AuthSettings {
	return config.AuthSettings{JWTSecret: "secret", JWTIssuer: "munichweekly", TokenTTL: time.Hour, SessionSecret: "s"}
}

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testAuthSettings(), &db.User{ID: 3, Email: "u@example.com", Role: role}, time.Now())
	require.NoError(t, err)
	return token
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("mw_test", cookie.NewStore([]byte("secret"))))
	return r
}

func TestAuthRequired(t *testing.T) {
	cfg := testAuthSettings()
	r := newTestEngine()
	r.GET("/me", AuthRequired(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c)})
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "malformed", header: "Token abc", status: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + tokenFor(t, db.RoleUser), status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAdminRequired(t *testing.T) {
	cfg := testAuthSettings()
	r := newTestEngine()
	r.GET("/admin", AuthRequired(cfg), AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, db.RoleUser))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"forbidden"`)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, db.RoleAdmin))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOptionalAuthIgnoresBadToken(t *testing.T) {
	r := newTestEngine()
	r.Use(OptionalAuth(testAuthSettings()))
	r.GET("/who", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": GetUserID(c), "admin": IsAdmin(c)})
	})

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer broken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":0,"admin":false}`, w.Body.String())
}

func TestVisitorIDPersistsInSession(t *testing.T) {
	r := newTestEngine()
	r.GET("/visitor", func(c *gin.Context) {
		c.String(http.StatusOK, VisitorID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/visitor", nil))
	first := w.Body.String()
	require.NotEmpty(t, first)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/visitor", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, first, w.Body.String())
}

func TestRateLimiterAllowAndCleanup(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2, logrus.New())
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))

	now = now.Add(time.Hour)
	assert.Equal(t, 2, rl.Cleanup())
}

func TestRateLimiterHandler(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	r := newTestEngine()
	r.POST("/votes", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/votes", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}
