package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/munichweekly/internal/cache"
	"github.com/munichweekly/internal/config"
	"github.com/munichweekly/internal/db"
	"github.com/munichweekly/internal/handler"
	"github.com/munichweekly/internal/logging"
	"github.com/munichweekly/internal/middleware"
	"github.com/munichweekly/internal/router"
	"github.com/munichweekly/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "munichweekly",
		Short:         "Munich Weekly photo submission and gallery backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCommand(), migrateCommand(), seedAdminCommand(), seedDemoCommand())
	return root
}

// bootstrap 读取配置、初始化日志并打开数据库。
func bootstrap() (config.AppConfig, *logrus.Logger, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			gin.SetMode(cfg.GinMode)

			gdb, err := db.Init(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close(gdb)

			if created, err := db.EnsureAdmin(gdb, cfg.AdminEmail, cfg.AdminPassword); err != nil {
				logger.WithError(err).Warn("failed to ensure admin account")
			} else if created {
				logger.WithField("email", cfg.AdminEmail).Info("admin account created")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := storage.New(cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			layoutCache, err := cache.New(ctx, cfg.Cache)
			if err != nil {
				return fmt.Errorf("failed to initialize cache: %w", err)
			}
			if closer, ok := layoutCache.(interface{ Close() error }); ok {
				defer closer.Close()
			}

			api := handler.NewAPI(handler.Dependencies{
				DB:      gdb,
				Config:  cfg,
				Logger:  logger,
				Storage: store,
				Cache:   layoutCache,
			})
			limiter := middleware.NewRateLimiter(cfg.Rules.VoteRatePerSecond, cfg.Rules.VoteBurst, logger)
			limiter.StartCleanup(time.Minute, ctx.Done())

			engine := router.SetupRouter(router.Options{API: api, Config: cfg, Logger: logger, VoteLimiter: limiter})
			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           router.WithCORS(engine, cfg.CORSOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.WithField("addr", cfg.ListenAddr).Info("server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("failed to run server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			return nil
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			gdb, err := db.Init(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			defer db.Close(gdb)
			logger.WithField("driver", cfg.Database.Driver).Info("database migrated")
			return nil
		},
	}
}

func seedAdminCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin account, or promote an existing user",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			if email == "" {
				email = cfg.AdminEmail
			}
			if password == "" {
				password = cfg.AdminPassword
			}
			if email == "" || password == "" {
				return errors.New("admin email and password are required (--email/--password or ADMIN_EMAIL/ADMIN_PASSWORD)")
			}

			gdb, err := db.Init(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close(gdb)

			created, err := db.EnsureAdmin(gdb, email, password)
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{"email": email, "created": created}).Info("admin account ready")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}

func seedDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-demo",
		Short: "Fill an empty database with demo issues and a published gallery",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			gdb, err := db.Init(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close(gdb)

			summary, err := db.SeedDemo(gdb, time.Now().UTC())
			if err != nil {
				return err
			}
			if summary.Skipped {
				logger.Info("database already has issues, demo data skipped")
				return nil
			}
			logger.WithFields(logrus.Fields{
				"users":       summary.Users,
				"issues":      summary.Issues,
				"submissions": summary.Submissions,
				"password":    db.DemoPassword,
			}).Info("demo data created")
			return nil
		},
	}
}
