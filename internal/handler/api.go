package handler

import (
	"time"

	"github.com/munichweekly/internal/cache"
	"github.com/munichweekly/internal/config"
	"github.com/munichweekly/internal/service"
	"github.com/munichweekly/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dependencies are the shared resources the handlers are built from.
type Dependencies struct {
	DB      *gorm.DB
	Config  config.AppConfig
	Logger  logrus.FieldLogger
	Storage storage.Storage
	Cache   cache.Cache
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	storage     storage.Storage
	cfg         config.AppConfig
	logger      logrus.FieldLogger
	users       *service.UserService
	issues      *service.IssueService
	submissions *service.SubmissionService
	votes       *service.VoteService
	galleries   *service.GalleryService
	layouts     *service.LayoutService
	promotions  *service.PromotionService
	now         func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(deps Dependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := deps.Cache
	if c == nil {
		c = cache.NewMemory()
	}

	galleries := service.NewGalleryService(deps.DB).WithLogger(logger)
	layouts := service.NewLayoutService(galleries, c, deps.Config.Cache.TTL).WithLogger(logger)
	rules := deps.Config.Rules

	return &API{
		db:      deps.DB,
		storage: deps.Storage,
		cfg:     deps.Config,
		logger:  logger,
		users:   service.NewUserService(deps.DB, deps.Config.Auth),
		issues:  service.NewIssueService(deps.DB).WithLayoutInvalidator(layouts).WithLogger(logger),
		submissions: service.NewSubmissionService(deps.DB, deps.Storage).
			WithLimits(rules.MaxSubmissionsPerIssue, deps.Config.Storage.MaxUploadBytes).
			WithLayoutInvalidator(layouts).
			WithLogger(logger),
		votes:     service.NewVoteService(deps.DB).WithLogger(logger),
		galleries: galleries,
		layouts:   layouts,
		promotions: service.NewPromotionService(deps.DB, deps.Storage).
			WithMaxUploadBytes(deps.Config.Storage.MaxUploadBytes).
			WithLogger(logger),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the underlying gorm instance for health checks.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Storage returns the image backend, nil when uploads are disabled.
func (a *API) Storage() storage.Storage {
	return a.storage
}

// SetClock replaces the time source; tests use it to move between issue phases.
func (a *API) SetClock(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}
