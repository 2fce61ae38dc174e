package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/db"
	"github.com/keystone-market/backend/internal/events"
	"github.com/keystone-market/backend/internal/repositories"
	"github.com/keystone-market/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	orderRepo := repositories.NewOrderRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	sellerRepo := repositories.NewSellerRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	notifyClient := services.NewNotifyClient(cfg.NotifyInternalURL, log)
	refundClient := services.NewRefundClient(cfg.RefundInternalURL, log)
	escrowService := services.NewEscrowService(orderRepo, escrowRepo, sellerRepo, auditRepo, refundClient, notifyClient, publisher, cfg, log)
	disputeService := services.NewDisputeService(orderRepo, disputeRepo, auditRepo, escrowService, notifyClient, publisher, cfg, log)
	scheduler := services.NewScheduler(escrowService, disputeService, disputeRepo, escrowRepo, cfg, log)

	log.Info("worker started",
		zap.Duration("release_interval", cfg.SchedulerReleaseInterval),
		zap.Duration("escalate_interval", cfg.SchedulerEscalateInterval))

	releaseTicker := time.NewTicker(cfg.SchedulerReleaseInterval)
	escalateTicker := time.NewTicker(cfg.SchedulerEscalateInterval)
	defer releaseTicker.Stop()
	defer escalateTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-releaseTicker.C:
			scheduler.RunReleasePass(ctx)
		case <-escalateTicker.C:
			scheduler.RunEscalatePass(ctx)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
