package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/keystone-market/backend/internal/cache"
	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/db"
	"github.com/keystone-market/backend/internal/events"
	apphttp "github.com/keystone-market/backend/internal/http"
	"github.com/keystone-market/backend/internal/http/handlers"
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

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	orderRepo := repositories.NewOrderRepo(pool)
	productRepo := repositories.NewProductRepo(pool)
	credentialRepo := repositories.NewCredentialRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	replacementRepo := repositories.NewReplacementRepo(pool)
	sellerRepo := repositories.NewSellerRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events & cache
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	redisCache := cache.NewRedisCache(rdb)

	// Bridge clients
	notifyClient := services.NewNotifyClient(cfg.NotifyInternalURL, log)
	vaultClient := services.NewVaultClient(cfg.VaultInternalURL, log)
	refundClient := services.NewRefundClient(cfg.RefundInternalURL, log)

	// Services
	escrowService := services.NewEscrowService(orderRepo, escrowRepo, sellerRepo, auditRepo, refundClient, notifyClient, publisher, cfg, log)
	deliveryService := services.NewDeliveryService(orderRepo, productRepo, credentialRepo, auditRepo, vaultClient, notifyClient, publisher, log)
	disputeService := services.NewDisputeService(orderRepo, disputeRepo, auditRepo, escrowService, notifyClient, publisher, cfg, log)
	replacementService := services.NewReplacementService(orderRepo, sellerRepo, replacementRepo, credentialRepo, productRepo, auditRepo, disputeService, vaultClient, notifyClient, publisher, log)
	reputationService := services.NewReputationService(sellerRepo, escrowRepo, redisCache, cfg, log)
	scheduler := services.NewScheduler(escrowService, disputeService, disputeRepo, escrowRepo, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	paymentHandler := handlers.NewPaymentHandler(escrowService, deliveryService, log)
	orderHandler := handlers.NewOrderHandler(orderRepo, productRepo, log)
	disputeHandler := handlers.NewDisputeHandler(disputeService, log)
	replacementHandler := handlers.NewReplacementHandler(replacementService, log)
	sellerHandler := handlers.NewSellerHandler(deliveryService, reputationService, productRepo, log)
	adminHandler := handlers.NewAdminHandler(disputeService, escrowService, reputationService, scheduler, sellerRepo, auditRepo, cfg, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, paymentHandler, orderHandler, disputeHandler, replacementHandler, sellerHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
