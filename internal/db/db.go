package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/munichweekly/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models 列出需要自动迁移的全部模型。
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Issue{},
		&Submission{},
		&Vote{},
		&GalleryIssueConfig{},
		&GallerySubmissionOrder{},
		&GalleryViewStatistic{},
		&GalleryVisit{},
		&PromotionConfig{},
		&PromotionImage{},
	}
}

// Open 根据配置选择 postgres 或 sqlite 驱动建立连接，并设置连接池参数。
func Open(settings config.DatabaseSettings) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
	}

	var (
		gdb *gorm.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(settings.Driver)) {
	case "postgres":
		gdb, err = gorm.Open(postgres.Open(settings.DSN), gormConfig)
	case "sqlite", "":
		path := strings.TrimSpace(settings.DSN)
		if path == "" {
			path = "munichweekly.db"
		}
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
		gdb, err = gorm.Open(sqlite.Open(path), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", settings.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get raw db: %w", err)
	}
	if settings.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(settings.MaxIdleConns)
	}
	if settings.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(settings.MaxOpenConns)
	}
	if settings.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(settings.ConnMaxLifetime)
	}

	return gdb, nil
}

// Migrate 自动迁移模式，为核心模型创建表。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// 旧数据中的状态统一为小写
	if err := gdb.Model(&Submission{}).
		Where("status = '' OR status IS NULL").
		Update("status", SubmissionStatusPending).Error; err != nil {
		return err
	}
	return nil
}

// Init 初始化数据库连接并执行自动迁移。
func Init(settings config.DatabaseSettings) (*gorm.DB, error) {
	gdb, err := Open(settings)
	if err != nil {
		return nil, err
	}
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Close 关闭底层连接。
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("get raw db: %w", err)
	}
	return sqlDB.Close()
}

// Ping 用于健康检查。
func Ping(gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
