package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"parafeo/signature-portal/signature-backend/internal/auth"
	"parafeo/signature-portal/signature-backend/internal/config"
	"parafeo/signature-portal/signature-backend/internal/documents"
	"parafeo/signature-portal/signature-backend/internal/events"
	"parafeo/signature-portal/signature-backend/internal/gateway"
	"parafeo/signature-portal/signature-backend/internal/notifications"
	"parafeo/signature-portal/signature-backend/internal/signatures"
	"parafeo/signature-portal/signature-backend/internal/workflow"
	"parafeo/signature-portal/signature-backend/pkg/storage"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	dbURL := cfg.Database.GetDatabaseURL()
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpostgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to open notifications database", zap.Error(err))
	}

	ctx := context.Background()
	store, err := storage.NewS3Client(ctx, cfg.Storage.Region)
	if err != nil {
		logger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}

	// One configured gateway client per process, injected by reference.
	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.Gateway.BaseURL,
		APIKey:        cfg.Gateway.APIKey,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
		TestMode:      cfg.Gateway.TestMode,
	}, logger)

	notifier, err := notifications.NewService(gormDB, notifications.EmailConfig{
		SMTPHost:    cfg.SMTP.Host,
		SMTPPort:    cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		FromAddress: cfg.SMTP.FromAddress,
		FromName:    cfg.SMTP.FromName,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notifications", zap.Error(err))
	}

	sigRepo := signatures.NewRepository(db)
	sigService := signatures.NewService(sigRepo, logger)
	sigHandler := signatures.NewHandler(sigService)

	docRepo := documents.NewRepository(db)
	docService := documents.NewService(docRepo, sigRepo, logger)
	docHandler := documents.NewHandler(docService)

	orchestrator := workflow.NewOrchestrator(
		docService, docRepo, sigService, sigRepo,
		gatewayClient, notifier, store, cfg.Storage.Bucket, logger)
	workflowHandler := workflow.NewHandler(orchestrator)

	reconciler := events.NewReconciler(docService, sigRepo, gatewayClient, orchestrator, logger)
	eventsHandler := events.NewHandler(reconciler, gatewayClient, logger)

	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Webhook routes authenticate through the payload signature.
	public := router.Group("/api/v1")
	eventsHandler.RegisterRoutes(public)

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Security.JWTSecret))
	{
		docHandler.RegisterRoutes(api)
		sigHandler.RegisterRoutes(api)
		workflowHandler.RegisterRoutes(api)
		eventsHandler.RegisterAPIRoutes(api)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
