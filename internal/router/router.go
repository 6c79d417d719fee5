// Package router wires the HTTP routes to their handlers and applies
// the middleware chain per route group.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/jmhautala/sportsreg/internal/config"
	"github.com/jmhautala/sportsreg/internal/handler"
	"github.com/jmhautala/sportsreg/internal/middleware"
	"github.com/jmhautala/sportsreg/internal/model"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Checkout *handler.CheckoutHandler
	Wallet   *handler.WalletHandler
	Webhook  *handler.WebhookHandler
	Admin    *handler.AdminHandler
}

// Register mounts all routes. Public routes carry no auth; the webhook
// authenticates by HMAC signature instead of JWT; customer and admin
// groups are JWT-protected with role enforcement. The rate limiter
// guards the unauthenticated surface and checkout creation.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	limit := middleware.RateLimit(rlCfg, rdb)

	e.GET("/healthz", handler.Health)

	e.POST("/v1/auth/register", h.Auth.Register, limit)
	e.POST("/v1/auth/login", h.Auth.Login, limit)

	e.GET("/v1/events", h.Admin.ListEvents)
	e.GET("/v1/events/:id", h.Admin.GetEvent)
	e.GET("/v1/events/:id/rooms", h.Admin.ListEventRooms)

	// Gateway callbacks: HMAC-verified, never JWT.
	e.POST("/v1/payments/webhook", h.Webhook.Handle, limit)

	customer := e.Group("/v1")
	customer.Use(middleware.JWTAuth(cfg.JWTSecret))
	customer.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	customer.GET("/me", h.Auth.Me)
	customer.POST("/checkouts", h.Checkout.Create, limit)
	customer.GET("/checkouts/:id", h.Checkout.Get)
	customer.GET("/orders", h.Checkout.ListOrders)
	customer.GET("/orders/:id", h.Checkout.GetOrder)
	customer.GET("/orders/:id/schedule", h.Checkout.GetSchedule)
	customer.GET("/wallet", h.Wallet.Summary)

	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(cfg.JWTSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/events", h.Admin.CreateEvent)
	admin.POST("/rooms", h.Admin.CreateRoom)
	admin.POST("/rooms/:id/inventory", h.Admin.SetInventory)
	admin.POST("/wallet/:user_id/deposit", h.Wallet.Deposit)
	admin.POST("/wallet/:user_id/withdraw", h.Wallet.Withdraw)
	admin.POST("/wallet/:user_id/refund", h.Wallet.Refund)
	admin.GET("/wallet/:user_id/audit", h.Wallet.Audit)
	admin.GET("/discrepancies", h.Admin.ListDiscrepancies)
	admin.POST("/discrepancies/:id/resolve", h.Admin.ResolveDiscrepancy)
}
