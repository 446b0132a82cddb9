package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/auth"
	"github.com/munichweekly/internal/config"
	"github.com/munichweekly/internal/db"
	"github.com/munichweekly/internal/logging"
	"github.com/munichweekly/internal/middleware"
	"github.com/munichweekly/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var handlerDBCounter int64

type testEnv struct {
	api    *API
	db     *gorm.DB
	cfg    config.AppConfig
	engine *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), atomic.AddInt64(&handlerDBCounter, 1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	cfg := config.AppConfig{
		Auth: config.AuthSettings{
			JWTSecret:     "handler-secret",
			JWTIssuer:     "munichweekly",
			TokenTTL:      time.Hour,
			SessionSecret: "handler-session",
		},
		Storage: config.StorageSettings{Provider: "local", MaxUploadBytes: 64 << 10},
		Cache:   config.CacheSettings{Provider: "memory", TTL: time.Minute},
		Rules:   config.RuleSettings{MaxSubmissionsPerIssue: 2, VoteRatePerSecond: 100, VoteBurst: 100},
	}
	store := storage.NewLocal(t.TempDir(), "/uploads")
	api := NewAPI(Dependencies{DB: gdb, Config: cfg, Logger: logging.Discard(), Storage: store})

	r := gin.New()
	r.Use(sessions.Sessions("handler_test", cookie.NewStore([]byte(cfg.Auth.SessionSecret))))
	r.Use(middleware.OptionalAuth(cfg.Auth))

	return &testEnv{api: api, db: gdb, cfg: cfg, engine: r}
}

func (e *testEnv) token(t *testing.T, user *db.User) string {
	t.Helper()
	token, err := auth.GenerateToken(e.cfg.Auth, user, time.Now())
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func (e *testEnv) seedUser(t *testing.T, email, role string) *db.User {
	t.Helper()
	user := db.User{Email: email, Password: "x", Nickname: email, Role: role}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

// seedIssue 投稿窗口为 base 前后一天，投票窗口紧随其后三天。
func (e *testEnv) seedIssue(t *testing.T, base time.Time) *db.Issue {
	t.Helper()
	issue := db.Issue{
		Title:           "Biergarten",
		Description:     "Summer *evenings*",
		SubmissionStart: base.Add(-24 * time.Hour),
		SubmissionEnd:   base.Add(24 * time.Hour),
		VotingStart:     base.Add(24 * time.Hour),
		VotingEnd:       base.Add(96 * time.Hour),
	}
	if err := e.db.Create(&issue).Error; err != nil {
		t.Fatalf("failed to seed issue: %v", err)
	}
	return &issue
}

func (e *testEnv) seedSubmission(t *testing.T, userID, issueID uint, status string, votes int) *db.Submission {
	t.Helper()
	sub := db.Submission{
		UserID:      userID,
		IssueID:     issueID,
		Status:      status,
		VoteCount:   votes,
		SubmittedAt: time.Now().UTC(),
		ImageWidth:  800,
		ImageHeight: 600,
	}
	if err := e.db.Create(&sub).Error; err != nil {
		t.Fatalf("failed to seed submission: %v", err)
	}
	return &sub
}

type request struct {
	method  string
	path    string
	body    io.Reader
	token   string
	cookies []*http.Cookie
	header  map[string]string
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	httpReq := httptest.NewRequest(req.method, req.path, req.body)
	if req.body != nil && req.header["Content-Type"] == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.header {
		httpReq.Header.Set(k, v)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		httpReq.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.engine.ServeHTTP(rr, httpReq)
	return rr
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartFile(t *testing.T, filename string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(uploadFormField, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func jsonReader(raw string) io.Reader {
	return bytes.NewBufferString(raw)
}

var issueBase = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
