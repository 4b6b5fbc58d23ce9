package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/database"
	"github.com/marcusgoll/cfipros-web-sub000/internal/auth"
	"github.com/marcusgoll/cfipros-web-sub000/internal/config"
	"github.com/marcusgoll/cfipros-web-sub000/internal/email"
	"github.com/marcusgoll/cfipros-web-sub000/internal/handlers"
	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/middleware"
	"github.com/marcusgoll/cfipros-web-sub000/internal/ocr"
	"github.com/marcusgoll/cfipros-web-sub000/internal/queue"
	"github.com/marcusgoll/cfipros-web-sub000/internal/repositories"
	"github.com/marcusgoll/cfipros-web-sub000/internal/routes"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services"
	"github.com/marcusgoll/cfipros-web-sub000/internal/storage"
	"github.com/marcusgoll/cfipros-web-sub000/internal/validator"
	"github.com/marcusgoll/cfipros-web-sub000/internal/workers"
	"github.com/marcusgoll/cfipros-web-sub000/ws"
)

const shutdownTimeout = 15 * time.Second

// repositoryContainer holds the stateless gorm repositories.
type repositoryContainer struct {
	users         repositories.UserRepository
	schools       repositories.SchoolRepository
	subscriptions repositories.SubscriptionRepository
	billingEvents repositories.BillingEventRepository
	uploads       repositories.UploadRepository
	ocrResults    repositories.OcrResultRepository
}

// background tracks what has to be stopped after the HTTP server drains.
type background struct {
	pool  *workers.WorkerPool
	redis *queue.RedisClient
}

func (b *background) stop() {
	if b.pool != nil {
		b.pool.Stop()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}
}

// Run starts the server and blocks until SIGINT/SIGTERM, then shuts down gracefully.
func Run(cfg *config.Config) error {
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to database...")
	db, err := database.Connect(cfg.Database.DSN, cfg.Server.Env == "development")
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info("Database connected")

	ginRouter, bg, err := SetupRouter(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer bg.stop()

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              address,
		Handler:           ginRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server startup error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// SetupRouter builds every component and returns the router. Background
// workers run until ctx is cancelled.
func SetupRouter(ctx context.Context, cfg *config.Config, db *gorm.DB) (*gin.Engine, *background, error) {
	repos := initializeRepositories()
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWTTTL())
	bg := &background{}

	tempStorage := storage.NewTempStorage(cfg.Upload.TempDir)
	archive, err := storage.NewStorage(storage.Config{
		Type:      cfg.Storage.Type,
		BasePath:  cfg.Storage.BasePath,
		BaseURL:   cfg.Storage.BaseURL,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Endpoint:  cfg.Storage.Endpoint,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize archive storage: %w", err)
	}
	logger.Info("Storage initialized", "type", cfg.Storage.Type, "temp_dir", cfg.Upload.TempDir)

	emailService, err := initializeEmail(cfg)
	if err != nil {
		return nil, nil, err
	}

	wsManager := ws.NewWebSocketManager()
	go wsManager.Run(ctx)
	wsHandler := ws.NewWebSocketHandler(wsManager, cfg.Server.AllowedOrigins)

	processor := workers.NewOCRJobProcessor(workers.OCRJobProcessorDeps{
		DB:      db,
		Uploads: repos.uploads,
		Results: repos.ocrResults,
		Users:   repos.users,
		Orchestrator: ocr.NewOrchestrator(ocr.NewGeminiExtractor(ocr.GeminiConfig{
			APIKey:  cfg.OCR.APIKey,
			Model:   cfg.OCR.Model,
			BaseURL: cfg.OCR.BaseURL,
			Timeout: cfg.OCRTimeout(),
		})),
		Temp:       tempStorage,
		Archive:    archive,
		Notifier:   wsManager,
		Mailer:     emailService,
		MaxRetries: cfg.OCRMaxRetries(),
		Timeout:    ocrJobTimeout(cfg),
	})

	dispatcher, err := initializeDispatcher(ctx, cfg, processor, bg)
	if err != nil {
		bg.stop()
		return nil, nil, err
	}

	serviceContainer := initializeServices(cfg, repos, tokens, tempStorage, dispatcher, emailService)

	workers.NewWebhookReplayWorker(db, serviceContainer.SubscriptionService, cfg.ReplayInterval(), cfg.Stripe.ReplayMaxAttempts).Start(ctx)
	workers.NewTempCleanupWorker(tempStorage, cfg.TempTTL()).Start(ctx)

	authMiddleware := middleware.AuthMiddleware(tokens)
	appHandlers := initializeHandlers(cfg, serviceContainer, authMiddleware)

	ginRouter := initializeGinRouter(cfg, db)
	routes.RegisterRoutes(ginRouter, appHandlers, wsHandler, authMiddleware)

	return ginRouter, bg, nil
}

func initializeRepositories() *repositoryContainer {
	return &repositoryContainer{
		users:         repositories.NewUserRepository(),
		schools:       repositories.NewSchoolRepository(),
		subscriptions: repositories.NewSubscriptionRepository(),
		billingEvents: repositories.NewBillingEventRepository(),
		uploads:       repositories.NewUploadRepository(),
		ocrResults:    repositories.NewOcrResultRepository(),
	}
}

func initializeEmail(cfg *config.Config) (services.EmailService, error) {
	if !cfg.Email.Enabled {
		logger.Warn("Email disabled, notifications are logged only")
		return services.NewEmailService(email.NewNoopProvider()), nil
	}

	templates, err := email.NewTemplateManager()
	if err != nil {
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}
	provider, err := email.NewGomailProvider(email.SMTPConfig{
		Host:      cfg.Email.SMTPHost,
		Port:      cfg.Email.SMTPPort,
		Username:  cfg.Email.SMTPUsername,
		Password:  cfg.Email.SMTPPassword,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	}, templates)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	logger.Info("Email provider initialized", "host", cfg.Email.SMTPHost)
	return services.NewEmailService(provider), nil
}

// initializeDispatcher picks where OCR jobs run: the in-process pool, or a
// redis list drained by a consumer.
func initializeDispatcher(ctx context.Context, cfg *config.Config, processor *workers.OCRJobProcessor, bg *background) (services.OCRDispatcher, error) {
	switch cfg.OCR.Queue {
	case "redis":
		rc, err := queue.NewRedisClient(ctx, queue.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		bg.redis = rc

		consumer := queue.NewConsumer(rc.Client(), cfg.Redis.OCRQueue, cfg.Redis.DLQSuffix)
		workers.NewRedisOCRConsumer(consumer, processor).Start(ctx)
		logger.Info("OCR dispatch via redis", "queue", cfg.Redis.OCRQueue)
		return workers.NewRedisDispatcher(queue.NewProducer(rc.Client(), cfg.Redis.OCRQueue)), nil
	default:
		pool := workers.NewWorkerPool(cfg.OCR.Workers, cfg.OCR.QueueSize)
		pool.Start(ctx)
		bg.pool = pool
		logger.Info("OCR dispatch via in-process pool", "workers", cfg.OCR.Workers)
		return workers.NewPoolDispatcher(pool, processor), nil
	}
}

func initializeServices(
	cfg *config.Config,
	repos *repositoryContainer,
	tokens *auth.TokenManager,
	temp *storage.LocalStorage,
	dispatcher services.OCRDispatcher,
	emailService services.EmailService,
) *services.ServiceContainer {
	subscriptionService := services.NewSubscriptionService(repos.subscriptions, repos.billingEvents, repos.schools, cfg.ReplayInterval())

	return &services.ServiceContainer{
		AuthService:         services.NewAuthService(repos.users, repos.schools, tokens),
		ProfileService:      services.NewProfileService(repos.users, subscriptionService),
		SubscriptionService: subscriptionService,
		UploadService:       services.NewUploadService(repos.uploads, temp, dispatcher),
		OcrResultService:    services.NewOcrResultService(repos.uploads, repos.ocrResults),
		EmailService:        emailService,
	}
}

func initializeHandlers(cfg *config.Config, svc *services.ServiceContainer, authMiddleware gin.HandlerFunc) *handlers.AppHandlers {
	baseHandler := handlers.NewBaseHandler(validator.New(), authMiddleware)

	return &handlers.AppHandlers{
		AuthHandler:         handlers.NewAuthHandler(baseHandler, svc.AuthService, svc.EmailService),
		ProfileHandler:      handlers.NewProfileHandler(baseHandler, svc.ProfileService),
		SubscriptionHandler: handlers.NewSubscriptionHandler(baseHandler, svc.SubscriptionService),
		UploadHandler:       handlers.NewUploadHandler(baseHandler, svc.UploadService, svc.OcrResultService, cfg.Upload.MaxRequest),
		WebhookHandler:      handlers.NewWebhookHandler(baseHandler, svc.SubscriptionService, cfg.Stripe.WebhookSecret),
	}
}

func initializeGinRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(middleware.DBMiddleware(db))
	return router
}

// ocrJobTimeout bounds a whole OCR run: every attempt plus the backoff between them.
func ocrJobTimeout(cfg *config.Config) time.Duration {
	retries := cfg.OCRMaxRetries()
	total := time.Duration(retries+1) * cfg.OCRTimeout()
	for attempt := 1; attempt <= retries; attempt++ {
		total += ocr.Backoff(ocr.BaseBackoff, attempt)
	}
	return total
}
