package app

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"commsub_backend/database"
	"commsub_backend/internal/auth"
	"commsub_backend/internal/config"
	"commsub_backend/internal/email"
	"commsub_backend/internal/handlers"
	"commsub_backend/internal/logger"
	"commsub_backend/internal/middleware"
	"commsub_backend/internal/models"
	"commsub_backend/internal/repositories"
	"commsub_backend/internal/routes"
	"commsub_backend/internal/services"
	"commsub_backend/internal/storage"
	appvalidator "commsub_backend/internal/validator"
	"commsub_backend/internal/workers"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Run собирает приложение и держит его до сигнала завершения
func Run() {
	config.LoadConfig()
	cfg := config.GetConfig()

	logger.Init(cfg.Server.Env)

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal("migration failed", "error", err)
	}

	router, container := SetupRouter(cfg, db)

	if err := seedFirstAdmin(db, cfg); err != nil {
		logger.Fatal("failed to seed first admin", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := workers.NewSubscriptionWorker(db, container.Subscriptions, time.Hour)
	worker.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// SetupRouter строит gin-роутер и граф сервисов. Вынесен отдельно,
// чтобы интеграционные тесты могли поднять приложение на своей БД.
func SetupRouter(cfg *config.Config, db *gorm.DB) (*gin.Engine, *services.ServiceContainer) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	emails := initializeEmailProvider(cfg)
	store := initializeStorage(cfg)
	container := services.NewServiceContainer(cfg, emails, store)

	v := appvalidator.New()
	appHandlers := handlers.NewAppHandlers(container, v)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DBMiddleware(db))

	routes.SetupRoutes(router, appHandlers)
	return router, container
}

func initializeEmailProvider(cfg *config.Config) email.Provider {
	if !cfg.Email.Enabled {
		logger.Warn("email disabled, using mock provider")
		return email.NewMockProvider()
	}

	provider, err := email.NewSMTPProvider(email.Config{
		SMTPHost:  cfg.Email.SMTPHost,
		SMTPPort:  cfg.Email.SMTPPort,
		Username:  cfg.Email.SMTPUsername,
		Password:  cfg.Email.SMTPPassword,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	})
	if err != nil {
		logger.Fatal("failed to initialize smtp provider", "error", err)
	}
	return provider
}

func initializeStorage(cfg *config.Config) storage.Storage {
	store, err := storage.NewStorage(storage.Config{
		Type:      cfg.Storage.Type,
		BasePath:  cfg.Storage.BasePath,
		BaseURL:   cfg.Storage.BaseURL,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Endpoint:  cfg.Storage.Endpoint,
	})
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	return store
}

// seedFirstAdmin создает администратора из конфигурации, если его
// еще нет. Идемпотентен: на повторных запусках ничего не делает.
func seedFirstAdmin(db *gorm.DB, cfg *config.Config) error {
	if cfg.FirstAdminEmail == "" || cfg.FirstAdminPassword == "" {
		return nil
	}

	userRepo := repositories.NewUserRepository()
	if _, err := userRepo.FindByEmail(db, cfg.FirstAdminEmail); err == nil {
		return nil
	} else if err != repositories.ErrNotFound {
		return err
	}

	hash, err := auth.HashPassword(cfg.FirstAdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		Username:     "admin",
		Email:        cfg.FirstAdminEmail,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
		Status:       models.UserStatusActive,
		IsVerified:   true,
	}
	if err := userRepo.Create(db, admin); err != nil {
		return err
	}

	logger.Info("first admin created", "email", cfg.FirstAdminEmail)
	return nil
}
