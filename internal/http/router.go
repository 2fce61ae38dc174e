package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/http/handlers"
	"github.com/keystone-market/backend/internal/middleware"
	"github.com/keystone-market/backend/internal/rbac"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	paymentHandler *handlers.PaymentHandler,
	orderHandler *handlers.OrderHandler,
	disputeHandler *handlers.DisputeHandler,
	replacementHandler *handlers.ReplacementHandler,
	sellerHandler *handlers.SellerHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Token issuer (dev/standalone; identity is external in production)
	api.Post("/auth/token", authHandler.IssueToken)

	// Payment provider webhook (provider-authenticated upstream, not JWT)
	api.Post("/payments/webhook", paymentHandler.Webhook)

	// Rate-limited endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Public seller profiles
	api.Get("/sellers/:id/profile", sellerHandler.GetProfile)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Orders (buyer)
	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListMyOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Get("/orders/:id/delivery", orderHandler.GetDelivery)
	protected.Get("/orders/:id/replacements", replacementHandler.ListReplacements)
	protected.Post("/orders/:id/replacements",
		middleware.RequirePermission(rbac.PermRequestReplacement), replacementHandler.RequestReplacement)

	// Disputes
	protected.Post("/disputes",
		middleware.RequirePermission(rbac.PermOpenDispute), disputeHandler.OpenDispute)
	protected.Get("/disputes", disputeHandler.ListDisputes)
	protected.Get("/disputes/:id", disputeHandler.GetDispute)
	protected.Get("/disputes/:id/messages", disputeHandler.ListMessages)
	protected.Post("/disputes/:id/messages",
		middleware.RequirePermission(rbac.PermMessageDispute), disputeHandler.AddMessage)
	protected.Post("/disputes/:id/close",
		middleware.RequirePermission(rbac.PermCloseDispute), disputeHandler.CloseDispute)

	// Seller surface
	seller := protected.Group("", middleware.RequireRole(rbac.RoleSeller))
	seller.Get("/me/seller", sellerHandler.GetMe)
	seller.Post("/products", sellerHandler.CreateProduct)
	seller.Get("/products/my", sellerHandler.MyProducts)
	seller.Post("/products/:id/credentials", sellerHandler.AddCredentials)
	seller.Delete("/products/:id/credentials/:credentialId", sellerHandler.RemoveCredential)
	seller.Get("/products/:id/pool", sellerHandler.PoolStats)

	// Admin surface
	admin := protected.Group("/admin", middleware.AdminMiddleware())
	admin.Post("/disputes/:id/resolve", adminHandler.ResolveDispute)
	admin.Post("/disputes/:id/escalate", adminHandler.EscalateDispute)
	admin.Get("/escrow/:orderId", adminHandler.GetEscrow)
	admin.Post("/escrow/:orderId/release", adminHandler.ForceRelease)
	admin.Post("/escrow/:orderId/refund", adminHandler.ForceRefund)
	admin.Post("/sellers", adminHandler.CreateSeller)
	admin.Post("/sellers/:id/recalculate", adminHandler.RecalculateSeller)
	admin.Post("/sellers/:id/verify", adminHandler.SetVerified)
	admin.Post("/sellers/:id/block", adminHandler.SetBlocked)
	admin.Put("/sellers/:id/trust-policy", adminHandler.UpdateTrustPolicy)
	admin.Get("/sellers/:id/reconcile", adminHandler.ReconcileSeller)
	admin.Post("/scheduler/run", adminHandler.RunScheduler)
	admin.Get("/audit", adminHandler.GetAuditLog)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
