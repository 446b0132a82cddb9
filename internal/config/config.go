package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret     = "munichweekly-dev-secret"
	defaultSessionSecret = "munichweekly-session-secret"

	// minReleaseSecretLen 是 release 模式下密钥的最短长度（字节）。
	minReleaseSecretLen = 32
)

// ErrWeakSecret 表示 release 模式下仍在使用内置或过短的密钥。
var ErrWeakSecret = errors.New("weak secret in release mode")

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr  string `validate:"required"`
	Port        string
	GinMode     string `validate:"oneof=debug release test"`
	CORSOrigins []string

	Database DatabaseSettings
	Auth     AuthSettings
	Storage  StorageSettings
	Cache    CacheSettings
	Log      LogSettings
	Rules    RuleSettings

	AdminEmail    string
	AdminPassword string
}

// DatabaseSettings 描述数据库连接参数，Driver 为 postgres 或 sqlite。
type DatabaseSettings struct {
	Driver          string `validate:"oneof=postgres sqlite"`
	DSN             string `validate:"required"`
	MaxIdleConns    int    `validate:"gte=0"`
	MaxOpenConns    int    `validate:"gte=0"`
	ConnMaxLifetime time.Duration
}

// AuthSettings 控制 JWT 与访客会话。
type AuthSettings struct {
	JWTSecret     string        `validate:"required"`
	JWTIssuer     string        `validate:"required"`
	TokenTTL      time.Duration `validate:"gt=0"`
	SessionSecret string        `validate:"required"`
}

// StorageSettings 选择图片存储后端。
type StorageSettings struct {
	Provider       string `validate:"oneof=local r2 cloudinary"`
	UploadDir      string
	UploadURLPath  string
	MaxUploadBytes int64 `validate:"gt=0"`

	R2Endpoint     string `validate:"required_if=Provider r2"`
	R2Region       string
	R2Bucket       string `validate:"required_if=Provider r2"`
	R2AccessKey    string `validate:"required_if=Provider r2"`
	R2SecretKey    string `validate:"required_if=Provider r2"`
	R2PublicURL    string `validate:"required_if=Provider r2"`
	CloudinaryName string `validate:"required_if=Provider cloudinary"`
	CloudinaryKey  string `validate:"required_if=Provider cloudinary"`
	CloudinarySec  string `validate:"required_if=Provider cloudinary"`
	Folder         string
}

// CacheSettings 选择布局缓存后端。
type CacheSettings struct {
	Provider  string `validate:"oneof=memory redis"`
	RedisAddr string `validate:"required_if=Provider redis"`
	TTL       time.Duration
}

// LogSettings 控制 logrus 输出。
type LogSettings struct {
	Level      string `validate:"oneof=debug info warn error"`
	Format     string `validate:"oneof=text json"`
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// RuleSettings 汇总投稿与投票的业务限制。
type RuleSettings struct {
	MaxSubmissionsPerIssue int `validate:"gt=0"`
	VoteRatePerSecond      int `validate:"gt=0"`
	VoteBurst              int `validate:"gt=0"`
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 工作目录下存在 .env 时会先加载它，已设置的环境变量不会被覆盖。
func Load() AppConfig {
	_ = godotenv.Load()

	port := envString("PORT", "8080")

	return AppConfig{
		ListenAddr:  envString("LISTEN_ADDR", fmt.Sprintf(":%s", port)),
		Port:        port,
		GinMode:     envString("GIN_MODE", "release"),
		CORSOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		Database: DatabaseSettings{
			Driver:          envString("DB_DRIVER", "sqlite"),
			DSN:             envString("DATABASE_URL", "munichweekly.db"),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Auth: AuthSettings{
			JWTSecret:     envString("JWT_SECRET", defaultJWTSecret),
			JWTIssuer:     envString("JWT_ISSUER", "munichweekly"),
			TokenTTL:      envDuration("JWT_TTL", 7*24*time.Hour),
			SessionSecret: envString("SESSION_SECRET", defaultSessionSecret),
		},
		Storage: StorageSettings{
			Provider:       envString("STORAGE_PROVIDER", "local"),
			UploadDir:      envString("UPLOAD_DIR", "data/uploads"),
			UploadURLPath:  envString("UPLOAD_URL_PATH", "/uploads"),
			MaxUploadBytes: int64(envInt("MAX_UPLOAD_MB", 20)) << 20,
			R2Endpoint:     envString("R2_ENDPOINT", ""),
			R2Region:       envString("R2_REGION", "auto"),
			R2Bucket:       envString("R2_BUCKET", ""),
			R2AccessKey:    envString("R2_ACCESS_KEY", ""),
			R2SecretKey:    envString("R2_SECRET_KEY", ""),
			R2PublicURL:    envString("R2_PUBLIC_URL", ""),
			CloudinaryName: envString("CLOUDINARY_CLOUD_NAME", ""),
			CloudinaryKey:  envString("CLOUDINARY_API_KEY", ""),
			CloudinarySec:  envString("CLOUDINARY_API_SECRET", ""),
			Folder:         envString("STORAGE_FOLDER", "munichweekly"),
		},
		Cache: CacheSettings{
			Provider:  envString("CACHE_PROVIDER", "memory"),
			RedisAddr: envString("REDIS_ADDR", ""),
			TTL:       envDuration("CACHE_TTL", 10*time.Minute),
		},
		Log: LogSettings{
			Level:      envString("LOG_LEVEL", "info"),
			Format:     envString("LOG_FORMAT", "text"),
			FilePath:   envString("LOG_FILE", ""),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 30),
		},
		Rules: RuleSettings{
			MaxSubmissionsPerIssue: envInt("MAX_SUBMISSIONS_PER_ISSUE", 4),
			VoteRatePerSecond:      envInt("VOTE_RATE_PER_SECOND", 5),
			VoteBurst:              envInt("VOTE_BURST", 10),
		},
		AdminEmail:    envString("ADMIN_EMAIL", ""),
		AdminPassword: envString("ADMIN_PASSWORD", ""),
	}
}

// Validate 校验配置组合是否合法。
func (c AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.GinMode == "release" {
		if err := checkSecret("JWT_SECRET", c.Auth.JWTSecret, defaultJWTSecret); err != nil {
			return err
		}
		if err := checkSecret("SESSION_SECRET", c.Auth.SessionSecret, defaultSessionSecret); err != nil {
			return err
		}
	}
	return nil
}

// 内置默认值只用于 debug 与 test 模式。
func checkSecret(name, value, builtin string) error {
	if value == builtin {
		return fmt.Errorf("%w: %s must be set", ErrWeakSecret, name)
	}
	if len(value) < minReleaseSecretLen {
		return fmt.Errorf("%w: %s must be at least %d bytes", ErrWeakSecret, name, minReleaseSecretLen)
	}
	return nil
}

func envString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
