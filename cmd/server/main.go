package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/jmhautala/sportsreg/internal/checkout"
	"github.com/jmhautala/sportsreg/internal/config"
	"github.com/jmhautala/sportsreg/internal/database"
	"github.com/jmhautala/sportsreg/internal/gateway"
	"github.com/jmhautala/sportsreg/internal/handler"
	"github.com/jmhautala/sportsreg/internal/queue"
	"github.com/jmhautala/sportsreg/internal/repository"
	"github.com/jmhautala/sportsreg/internal/router"
	"github.com/jmhautala/sportsreg/internal/service"
)

func main() {
	_ = godotenv.Load() // optional .env for local development

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	if cfg.Env == "prod" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	log := logrus.WithField("component", "server")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(ctx, db); err != nil {
		cancel()
		log.WithError(err).Fatal("migration failed")
	}
	cancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unreachable; rate limiting disabled")
	}

	wallets := repository.NewWalletRepo(db)
	checkouts := repository.NewCheckoutRepo(db)
	orders := repository.NewOrderRepo(db)
	rooms := repository.NewRoomRepo(db)
	attendance := repository.NewAttendanceRepo(db)
	events := repository.NewEventRepo(db)
	discrepancies := repository.NewDiscrepancyRepo(db)
	users := repository.NewUserRepo(db)

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey)
	publisher := service.NewEventPublisher()

	engine := checkout.NewEngine(cfg, db, wallets, checkouts, orders, rooms,
		attendance, events, discrepancies, gw, publisher)

	go queue.StartOrderConsumer()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(users, cfg),
		Checkout: handler.NewCheckoutHandler(engine, orders, rooms),
		Wallet:   handler.NewWalletHandler(wallets),
		Webhook:  handler.NewWebhookHandler(engine, cfg.GatewayWebhookSecret),
		Admin:    handler.NewAdminHandler(events, rooms, discrepancies),
	}, cfg, rlCfg, rdb)

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
	if err := e.Start(addr); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
