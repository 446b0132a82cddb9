package router

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/auth"
	"github.com/munichweekly/internal/config"
	"github.com/munichweekly/internal/db"
	"github.com/munichweekly/internal/handler"
	"github.com/munichweekly/internal/logging"
	"github.com/munichweekly/internal/middleware"
	"github.com/munichweekly/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testConfig(uploadDir string) config.AppConfig {
	return config.AppConfig{
		GinMode: gin.TestMode,
		Auth: config.AuthSettings{
			JWTSecret:     "router-secret",
			JWTIssuer:     "munichweekly",
			TokenTTL:      time.Hour,
			SessionSecret: "router-session",
		},
		Storage: config.StorageSettings{
			Provider:       "local",
			UploadDir:      uploadDir,
			UploadURLPath:  "/uploads",
			MaxUploadBytes: 1 << 20,
		},
		Cache: config.CacheSettings{Provider: "memory", TTL: time.Minute},
		Rules: config.RuleSettings{MaxSubmissionsPerIssue: 4, VoteRatePerSecond: 1, VoteBurst: 1},
	}
}

func setupTestRouter(t *testing.T) (*gin.Engine, config.AppConfig) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	cfg := testConfig(t.TempDir())
	store := storage.NewLocal(cfg.Storage.UploadDir, cfg.Storage.UploadURLPath)
	api := handler.NewAPI(handler.Dependencies{DB: gdb, Config: cfg, Logger: logging.Discard(), Storage: store})
	limiter := middleware.NewRateLimiter(cfg.Rules.VoteRatePerSecond, cfg.Rules.VoteBurst, logging.Discard())
	return SetupRouter(Options{API: api, Config: cfg, Logger: logging.Discard(), VoteLimiter: limiter}), cfg
}

func TestSetupRouterServesUploads(t *testing.T) {
	r, cfg := setupTestRouter(t)

	fileName := "example.txt"
	fileContent := []byte("hello uploads")
	if err := os.WriteFile(filepath.Join(cfg.Storage.UploadDir, fileName), fileContent, 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/uploads/"+fileName, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != string(fileContent) {
		t.Fatalf("unexpected body, got %q", rr.Body.String())
	}
}

func TestPingAndMetrics(t *testing.T) {
	r, _ := setupTestRouter(t)

	for _, path := range []string{"/ping", "/metrics"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	r, cfg := setupTestRouter(t)

	userToken, err := auth.GenerateToken(cfg.Auth, &db.User{ID: 1, Email: "u@example.com", Role: db.RoleUser}, time.Now())
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	adminToken, err := auth.GenerateToken(cfg.Auth, &db.User{ID: 2, Email: "a@example.com", Role: db.RoleAdmin}, time.Now())
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "anonymous", status: http.StatusUnauthorized},
		{name: "user", token: userToken, status: http.StatusForbidden},
		{name: "admin", token: adminToken, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/issues", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestVoteEndpointsAreRateLimited(t *testing.T) {
	r, _ := setupTestRouter(t)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/votes?submissionId=99", nil))
	if first.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown submission, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/votes?submissionId=99", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	check := httptest.NewRecorder()
	r.ServeHTTP(check, httptest.NewRequest(http.MethodGet, "/api/votes/check?submissionId=99", nil))
	if check.Code != http.StatusOK {
		t.Fatalf("check endpoint should not be limited, got %d", check.Code)
	}
}

func TestWithCORSAllowsConfiguredOrigin(t *testing.T) {
	r, _ := setupTestRouter(t)
	h := WithCORS(r, []string{"http://localhost:3000"})

	req := httptest.NewRequest(http.MethodOptions, "/api/issues", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed, got %q", got)
	}

	other := httptest.NewRequest(http.MethodGet, "/ping", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin for foreign site: %q", got)
	}
}
