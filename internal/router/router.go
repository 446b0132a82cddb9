package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/config"
	"github.com/munichweekly/internal/db"
	"github.com/munichweekly/internal/handler"
	"github.com/munichweekly/internal/logging"
	"github.com/munichweekly/internal/metrics"
	"github.com/munichweekly/internal/middleware"
	"github.com/munichweekly/internal/storage"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const sessionName = "munichweekly_session"

// Options 汇总构建路由所需的依赖。
type Options struct {
	API         *handler.API
	Config      config.AppConfig
	Logger      logrus.FieldLogger
	VoteLimiter *middleware.RateLimiter
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	limiter := opts.VoteLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(opts.Config.Rules.VoteRatePerSecond, opts.Config.Rules.VoteBurst, logger)
	}
	api := opts.API
	authCfg := opts.Config.Auth

	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger), metrics.Middleware())

	// 会话仅用于保存匿名访客 ID
	store := cookie.NewStore([]byte(authCfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   opts.Config.GinMode == gin.ReleaseMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.OptionalAuth(authCfg))

	if local, ok := api.Storage().(*storage.Local); ok {
		r.Static(local.URLPath(), local.Dir())
	}

	r.GET("/ping", func(c *gin.Context) {
		if err := db.Ping(api.DB()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	public := r.Group("/api")
	{
		public.POST("/auth/register", api.Register)
		public.POST("/auth/login", api.Login)

		public.GET("/issues", api.ListIssues)
		public.GET("/issues/:id", api.GetIssue)

		public.GET("/submissions", api.ListSubmissions)

		votes := public.Group("/votes")
		{
			votes.POST("", limiter.Handler(), api.CastVote)
			votes.DELETE("", limiter.Handler(), api.CancelVote)
			votes.GET("/check", api.CheckVote)
			votes.GET("/status", api.VoteStatus)
		}

		public.GET("/gallery/issues", api.ListPublishedGalleries)
		public.GET("/gallery/issues/:issueId", api.GetIssueGallery)
		public.GET("/gallery/issues/:issueId/masonry", api.GetMasonryLayout)
		public.POST("/gallery/issues/:issueId/views", api.RecordGalleryView)

		public.GET("/promotion/config", api.ActivePromotion)
		public.GET("/promotion/page/:pageUrl", api.PromotionPage)
	}

	user := r.Group("/api")
	user.Use(middleware.AuthRequired(authCfg))
	{
		user.GET("/users/me", api.Me)
		user.GET("/submissions/mine", api.ListMySubmissions)
		user.POST("/submissions", api.CreateSubmission)
		user.POST("/submissions/:id/image", api.UploadSubmissionImage)
		user.DELETE("/submissions/:id", api.DeleteSubmission)
	}

	// 后台管理路由
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(authCfg), middleware.AdminRequired())
	{
		admin.GET("/dashboard", api.Dashboard)

		admin.GET("/issues", api.ListIssues)
		admin.GET("/issues/:id", api.GetIssue)
		admin.POST("/issues", api.CreateIssue)
		admin.PUT("/issues/:id", api.UpdateIssue)
		admin.DELETE("/issues/:id", api.DeleteIssue)

		admin.GET("/submissions", api.AdminListSubmissions)
		admin.GET("/submissions/:id", api.AdminGetSubmission)
		admin.PATCH("/submissions/:id/review", api.ReviewSubmission)
		admin.DELETE("/submissions/:id", api.DeleteSubmission)

		admin.GET("/users", api.ListUsers)
		admin.PATCH("/users/:id/ban", api.BanUser)

		admin.GET("/gallery/configs", api.ListGalleryConfigs)
		admin.GET("/gallery/configs/:id", api.GetGalleryConfig)
		admin.POST("/gallery/configs", api.CreateGalleryConfig)
		admin.PUT("/gallery/configs/:id", api.UpdateGalleryConfig)
		admin.DELETE("/gallery/configs/:id", api.DeleteGalleryConfig)
		admin.PATCH("/gallery/configs/:id/publish", api.PublishGalleryConfig)
		admin.PUT("/gallery/configs/:id/order", api.SetGalleryOrder)
		admin.GET("/gallery/issues/:issueId", api.PreviewIssueGallery)
		admin.GET("/gallery/stats", api.GalleryStats)

		admin.GET("/promotion/configs", api.ListPromotions)
		admin.GET("/promotion/configs/:id", api.GetPromotion)
		admin.POST("/promotion/configs", api.CreatePromotion)
		admin.PUT("/promotion/configs/:id", api.UpdatePromotion)
		admin.DELETE("/promotion/configs/:id", api.DeletePromotion)
		admin.POST("/promotion/configs/:id/activate", api.ActivatePromotion)
		admin.POST("/promotion/configs/:id/deactivate", api.DeactivatePromotion)
		admin.POST("/promotion/configs/:id/images", api.AddPromotionImage)
		admin.PUT("/promotion/configs/:id/images/order", api.ReorderPromotionImages)
		admin.PATCH("/promotion/images/:imageId", api.UpdatePromotionImage)
		admin.DELETE("/promotion/images/:imageId", api.DeletePromotionImage)
	}

	return r
}

// WithCORS 允许前端域名携带凭据访问 API。
func WithCORS(next http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	}).Handler(next)
}
