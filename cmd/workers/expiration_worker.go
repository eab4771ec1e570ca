package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"parafeo/signature-portal/signature-backend/internal/config"
	"parafeo/signature-portal/signature-backend/internal/signatures"
)

// Periodically flags signature records whose deadline has passed so the
// API never serves a signable link for a lapsed invitation.
func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	service := signatures.NewService(signatures.NewRepository(db), logger)

	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		expired, err := service.ExpireLapsed(ctx)
		if err != nil {
			logger.Error("Expiration sweep failed", zap.Error(err))
			return
		}
		if expired > 0 {
			logger.Info("Expired lapsed signature invitations", zap.Int64("count", expired))
		}
	}

	c := cron.New()
	if _, err := c.AddFunc("*/15 * * * *", sweep); err != nil {
		logger.Fatal("Failed to schedule expiration sweep", zap.Error(err))
	}

	// Run once at startup so a restart never delays the sweep.
	sweep()
	c.Start()
	logger.Info("Expiration worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("Expiration worker stopped")
}
